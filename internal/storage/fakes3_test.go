package storage

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

const fakeETag = `"d41d8cd98f00b204e9800998ecf8427e"`

// fakeS3 is a minimal path-style S3 endpoint: bucket HEAD/PUT, object
// HEAD/PUT and the multipart upload calls (initiate, upload part, complete,
// abort). Streaming aws-chunked bodies are decoded before they are stored.
type fakeS3 struct {
	mu      sync.Mutex
	buckets map[string]bool
	objects map[string][]byte
	parts   map[string][]int
	uploads map[string]*fakeUpload
	created []string
	nextID  int
}

type fakeUpload struct {
	object string
	parts  map[int][]byte
}

type completeUploadBody struct {
	Parts []struct {
		PartNumber int
	} `xml:"Part"`
}

func newFakeS3(t *testing.T, buckets ...string) (*fakeS3, *httptest.Server) {
	t.Helper()
	f := &fakeS3{
		buckets: map[string]bool{},
		objects: map[string][]byte{},
		parts:   map[string][]int{},
		uploads: map[string]*fakeUpload{},
	}
	for _, b := range buckets {
		f.buckets[b] = true
	}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeS3) put(bucket, key string, body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[bucket+"/"+key] = body
}

func (f *fakeS3) object(bucket, key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[bucket+"/"+key]
	return b, ok
}

// partSizes returns the size of every part of a completed multipart upload,
// in part order. It is nil for objects stored with a single PUT.
func (f *fakeS3) partSizes(bucket, key string) []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.parts[bucket+"/"+key]...)
}

func (f *fakeS3) pendingUploads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

func (f *fakeS3) createdBuckets() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.created...)
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	bucket, key, _ := strings.Cut(strings.Trim(r.URL.Path, "/"), "/")
	query := r.URL.Query()

	f.mu.Lock()
	defer f.mu.Unlock()

	if key == "" {
		f.serveBucket(w, r, bucket)
		return
	}
	name := bucket + "/" + key

	switch {
	case r.Method == http.MethodPost && query.Has("uploads"):
		f.nextID++
		id := "upload-" + strconv.Itoa(f.nextID)
		f.uploads[id] = &fakeUpload{object: name, parts: map[int][]byte{}}
		writeXML(w, fmt.Sprintf(
			"<InitiateMultipartUploadResult><Bucket>%s</Bucket><Key>%s</Key><UploadId>%s</UploadId></InitiateMultipartUploadResult>",
			bucket, key, id))
	case r.Method == http.MethodPut && query.Has("partNumber"):
		upload, ok := f.uploads[query.Get("uploadId")]
		if !ok {
			writeError(w, http.StatusNotFound, "NoSuchUpload")
			return
		}
		n, err := strconv.Atoi(query.Get("partNumber"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "InvalidArgument")
			return
		}
		body, err := readBody(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "IncompleteBody")
			return
		}
		upload.parts[n] = body
		w.Header().Set("ETag", fakeETag)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPost && query.Has("uploadId"):
		id := query.Get("uploadId")
		upload, ok := f.uploads[id]
		if !ok {
			writeError(w, http.StatusNotFound, "NoSuchUpload")
			return
		}
		var complete completeUploadBody
		if err := xml.NewDecoder(r.Body).Decode(&complete); err != nil {
			writeError(w, http.StatusBadRequest, "MalformedXML")
			return
		}
		var (
			joined bytes.Buffer
			sizes  []int
		)
		for _, p := range complete.Parts {
			body, ok := upload.parts[p.PartNumber]
			if !ok {
				writeError(w, http.StatusBadRequest, "InvalidPart")
				return
			}
			joined.Write(body)
			sizes = append(sizes, len(body))
		}
		f.objects[upload.object] = joined.Bytes()
		f.parts[upload.object] = sizes
		delete(f.uploads, id)
		writeXML(w, fmt.Sprintf(
			"<CompleteMultipartUploadResult><Location>/%s</Location><Bucket>%s</Bucket><Key>%s</Key><ETag>%s</ETag></CompleteMultipartUploadResult>",
			name, bucket, key, fakeETag))
	case r.Method == http.MethodDelete && query.Has("uploadId"):
		delete(f.uploads, query.Get("uploadId"))
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodHead:
		body, ok := f.objects[name]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h := w.Header()
		h.Set("Content-Length", strconv.Itoa(len(body)))
		h.Set("Content-Type", "application/octet-stream")
		h.Set("ETag", fakeETag)
		h.Set("Last-Modified", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Format(http.TimeFormat))
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut:
		body, err := readBody(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "IncompleteBody")
			return
		}
		f.objects[name] = body
		delete(f.parts, name)
		w.Header().Set("ETag", fakeETag)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeS3) serveBucket(w http.ResponseWriter, r *http.Request, bucket string) {
	switch r.Method {
	case http.MethodHead:
		if !f.buckets[bucket] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case http.MethodPut:
		_, _ = io.Copy(io.Discard, r.Body)
		f.buckets[bucket] = true
		f.created = append(f.created, bucket)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// patternedBody returns n bytes whose content depends on position, so a
// reordered or truncated reassembly never compares equal.
func patternedBody(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}

// unsizedReader hides Len and Seek so clients must treat the stream as
// unknown-length.
type unsizedReader struct {
	io.Reader
}

func writeXML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, xml.Header+body)
}

func writeError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, xml.Header+"<Error><Code>"+code+"</Code><Message>"+code+"</Message></Error>")
}

// readBody returns the object bytes of a PUT, unwrapping aws-chunked
// streaming payloads.
func readBody(r *http.Request) ([]byte, error) {
	if strings.Contains(r.Header.Get("Content-Encoding"), "aws-chunked") ||
		strings.HasPrefix(r.Header.Get("X-Amz-Content-Sha256"), "STREAMING-") {
		return decodeAWSChunked(r.Body)
	}
	return io.ReadAll(r.Body)
}

// decodeAWSChunked reads "<hex-size>[;chunk-signature=...]\r\n<data>\r\n"
// frames until the zero-length chunk. Trailers after it are ignored.
func decodeAWSChunked(r io.Reader) ([]byte, error) {
	br := bufio.NewReader(r)
	var out bytes.Buffer
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, err
		}
		sizeHex, _, _ := strings.Cut(strings.TrimRight(line, "\r\n"), ";")
		n, err := strconv.ParseInt(strings.TrimSpace(sizeHex), 16, 64)
		if err != nil {
			return nil, fmt.Errorf("chunk size %q: %w", sizeHex, err)
		}
		if n == 0 {
			_, _ = io.Copy(io.Discard, br)
			return out.Bytes(), nil
		}
		if _, err := io.CopyN(&out, br, n); err != nil {
			return nil, err
		}
		if _, err := br.Discard(2); err != nil {
			return nil, err
		}
	}
}
