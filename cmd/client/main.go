package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gitlab.com/dirk.krummacker/contact-cards/pkg/model"
)

var serverURL string

// Usage examples on the command line:
// > go run main.go -mode=refresh
// > go run main.go -mode=list
// > go run main.go -mode=qrcode -id=7a0eed16-9430-4d68-901f-c0d4c1c3bf00 -out=erika.png
// > go run main.go -mode=scan -file=erika.png
// > go run main.go -mode=bench
func main() {
	modePtr := flag.String("mode", "list", "what to do: list, refresh, qrcode, scan, or bench")
	serverPtr := flag.String("server", "http://localhost:8080", "base URL of the contacts service")
	idPtr := flag.String("id", "", "the uuid of the contact for mode qrcode")
	outPtr := flag.String("out", "contact.png", "the file the QR code is written to")
	sizePtr := flag.Int("size", 512, "edge length of the QR code in pixels")
	filePtr := flag.String("file", "", "the image that is uploaded for mode scan")
	flag.Parse()
	serverURL = *serverPtr

	switch *modePtr {
	case "list":
		list()
	case "refresh":
		resBody, _, _ := sendRequest(http.MethodPost, serverURL+"/contacts/refresh", "", nil)
		fmt.Println(string(resBody))
	case "qrcode":
		downloadQRCode(*idPtr, *sizePtr, *outPtr)
	case "scan":
		scan(*filePtr)
	case "bench":
		bench()
	default:
		fmt.Println("unknown mode", *modePtr)
		os.Exit(2)
	}
}

func list() {
	resBody, _, _ := sendRequest(http.MethodGet, serverURL+"/contacts", "", nil)
	var contacts []model.Contact
	if err := json.Unmarshal(resBody, &contacts); err != nil {
		fmt.Println("could not unmarshal JSON", err)
		panic(err)
	}
	for _, c := range contacts {
		fmt.Printf("%-38s %-15s %-15s %3d  %s\n", c.UUID, c.FirstName, c.LastName, c.Age, c.Email)
	}
}

func downloadQRCode(id string, size int, out string) {
	if id == "" {
		fmt.Println("missing -id")
		os.Exit(2)
	}
	requestURL := fmt.Sprintf("%s/contacts/%s/qrcode?size=%d", serverURL, id, size)
	resBody, status, _ := sendRequest(http.MethodGet, requestURL, "", nil)
	if err := checkQRCode(status, resBody); err != nil {
		fmt.Println("no QR code received:", err)
		os.Exit(1)
	}
	if err := os.WriteFile(out, resBody, 0o644); err != nil {
		fmt.Println("could not write file", err)
		panic(err)
	}
	fmt.Println("written to", out)
}

// checkQRCode reports responses that do not carry a PNG image, like a 404 or the text fallback.
func checkQRCode(status int, body []byte) error {
	if status != http.StatusOK {
		return fmt.Errorf("status %d: %s", status, body)
	}
	if contentType := http.DetectContentType(body); contentType != "image/png" {
		return fmt.Errorf("unexpected content type %s: %s", contentType, body)
	}
	return nil
}

// scan opens a scan session, uploads the image as a single frame and waits for the outcome.
func scan(file string) {
	frame, err := os.ReadFile(file)
	if err != nil {
		fmt.Println("could not read frame", err)
		panic(err)
	}

	resBody, _, _ := sendRequest(http.MethodPost, serverURL+"/scans", "application/json",
		bytes.NewReader([]byte(`{"granted": true}`)))
	var status model.ScanStatus
	if err := json.Unmarshal(resBody, &status); err != nil || status.ID == "" {
		fmt.Println("could not start scan session", string(resBody))
		os.Exit(1)
	}
	defer sendRequest(http.MethodDelete, serverURL+"/scans/"+status.ID, "", nil)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("frame", filepath.Base(file))
	if err != nil {
		panic(err)
	}
	if _, err := part.Write(frame); err != nil {
		panic(err)
	}
	if err := writer.Close(); err != nil {
		panic(err)
	}
	sendRequest(http.MethodPost, serverURL+"/scans/"+status.ID+"/frames", writer.FormDataContentType(), &body)

	for i := 0; i < 50; i++ {
		resBody, _, _ = sendRequest(http.MethodGet, serverURL+"/scans/"+status.ID, "", nil)
		if err := json.Unmarshal(resBody, &status); err != nil {
			panic(err)
		}
		switch status.Status {
		case "accepted":
			fmt.Printf("accepted %s %s (%s)\n", status.Contact.FirstName, status.Contact.LastName, status.Contact.UUID)
			return
		case "invalid", "failed":
			fmt.Println(status.Status, status.Message)
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	fmt.Println("no QR code found in", file)
}

// bench measures the average duration of upserts and lookups in microseconds.
func bench() {
	fmt.Println()
	fmt.Println("  Elements      POST       GET")
	fmt.Println("-------------------------------")
	sizes := []int{100, 500, 1000, 5000}
	for _, loops := range sizes {
		ids := make([]string, 0, loops)
		fmt.Printf("%10d", loops)
		{
			// POST requests
			var duration int64
			for i := 0; i < loops; i++ {
				contact := model.Contact{
					UUID:      uuid.NewString(),
					FirstName: "Marcus",
					LastName:  "Antonius",
					Phone:     "+39 999 777 555",
					Age:       53,
				}
				jsonBody, _ := json.Marshal(contact)
				_, _, d := sendRequest(http.MethodPost, serverURL+"/contacts", "application/json", bytes.NewReader(jsonBody))
				duration += d
				ids = append(ids, contact.UUID)
			}
			fmt.Printf("%10d", duration/int64(loops*1000))
		}
		{
			// GET requests
			var duration int64
			for _, id := range ids {
				_, _, d := sendRequest(http.MethodGet, serverURL+"/contacts/"+id, "", nil)
				duration += d
			}
			fmt.Printf("%10d", duration/int64(loops*1000))
		}
		fmt.Println()
	}
}

// sendRequest returns the response body, the status code and the duration in nanoseconds.
func sendRequest(method string, requestURL string, contentType string, bodyReader io.Reader) ([]byte, int, int64) {
	req, err := http.NewRequest(method, requestURL, bodyReader)
	if err != nil {
		fmt.Println("could not create request", err)
		panic(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	before := time.Now().UnixNano()
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Println("error making http request", err)
		panic(err)
	}
	defer res.Body.Close()
	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		fmt.Println("could not read response body", err)
		panic(err)
	}
	after := time.Now().UnixNano()
	return resBody, res.StatusCode, after - before
}
