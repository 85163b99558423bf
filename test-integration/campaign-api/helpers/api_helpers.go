package helpers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/onsi/gomega"
)

// Response is a decoded API answer
type Response struct {
	Status int
	Body   map[string]any
}

// Data returns the "data" member as an object
func (r Response) Data() map[string]any {
	data, ok := r.Body["data"].(map[string]any)
	gomega.Expect(ok).To(gomega.BeTrue(), "data is not an object: %v", r.Body)
	return data
}

// Items returns the "data" member as a list of objects
func (r Response) Items() []map[string]any {
	raw, ok := r.Body["data"].([]any)
	gomega.Expect(ok).To(gomega.BeTrue(), "data is not a list: %v", r.Body)
	items := make([]map[string]any, len(raw))
	for i, item := range raw {
		items[i] = item.(map[string]any)
	}
	return items
}

// Meta returns the pagination metadata of a list response
func (r Response) Meta() map[string]any {
	meta, ok := r.Body["meta"].(map[string]any)
	gomega.Expect(ok).To(gomega.BeTrue(), "meta missing: %v", r.Body)
	return meta
}

// Error returns the error message of a failed request
func (r Response) Error() string {
	msg, _ := r.Body["error"].(string)
	return msg
}

// Do sends a JSON request to the server and decodes the answer
func (s *ServerTestHelper) Do(method, path string, body any) Response {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(s.ctx, method, s.baseURL+path, reader)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())

	out := Response{Status: resp.StatusCode}
	if len(raw) > 0 {
		gomega.Expect(json.Unmarshal(raw, &out.Body)).To(gomega.Succeed(), "body: %s", raw)
	}
	return out
}

// MustCreate posts a record and returns its id
func (s *ServerTestHelper) MustCreate(route string, body map[string]any) int64 {
	resp := s.Do(http.MethodPost, "/api/v1/"+route, body)
	gomega.Expect(resp.Status).To(gomega.Equal(http.StatusCreated), "create %s: %v", route, resp.Body)
	id, ok := resp.Data()["id"].(float64)
	gomega.Expect(ok).To(gomega.BeTrue())
	return int64(id)
}

// Path joins an API route and record id
func Path(route string, id int64) string {
	return fmt.Sprintf("/api/v1/%s/%d", route, id)
}
