// Package assets talks to the media host that keeps submitted images
// alive after Discord's CDN links expire. The API is Cloudinary-shaped:
// uploads return a stable URL plus a public id, transformations are URL
// segments, deletion is by public id.
package assets

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/eclipsabot/eclipsa/api/env"
	"github.com/eclipsabot/eclipsa/errs"
)

// Asset is one hosted file.
type Asset struct {
	Id  string `json:"public_id"`
	Url string `json:"secure_url"`
}

// Store is what the lifecycles need from the media host.
type Store interface {
	Upload(data []byte, folder string) (*Asset, error)
	Transform(url string, ops ...string) string
	Delete(id string) error
}

type HttpStore struct {
	base   string
	cloud  string
	key    string
	secret string
	client *http.Client
}

func New() *HttpStore {
	return &HttpStore{
		base:   env.GetOr("assets.url", "https://api.cloudinary.com"),
		cloud:  env.Get("assets.cloud"),
		key:    env.Get("assets.key"),
		secret: env.Get("assets.secret"),
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewWithBase is used by tests to point the store at a local server.
func NewWithBase(base string) *HttpStore {
	s := New()
	s.base = base
	return s
}

func (s *HttpStore) Upload(data []byte, folder string) (*Asset, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "upload")
	if err != nil {
		return nil, err
	}
	if _, err = part.Write(data); err != nil {
		return nil, err
	}
	_ = writer.WriteField("folder", folder)
	_ = writer.WriteField("api_key", s.key)
	if err = writer.Close(); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1_1/%s/auto/upload", s.base, s.cloud)
	req, err := http.NewRequest(http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.SetBasicAuth(s.key, s.secret)

	response, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("uploading asset: %w", errs.ErrExternal)
	}
	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("uploading asset: status %d: %w", response.StatusCode, errs.ErrExternal)
	}

	asset := &Asset{}
	if err = json.NewDecoder(response.Body).Decode(asset); err != nil {
		return nil, fmt.Errorf("decoding upload response: %w", errs.ErrExternal)
	}
	return asset, nil
}

// Transform inserts transformation segments into a delivery URL, e.g.
// Transform(url, "w_800,c_scale"). Unknown URLs are returned unchanged.
func (s *HttpStore) Transform(url string, ops ...string) string {
	if len(ops) == 0 {
		return url
	}
	marker := "/upload/"
	idx := strings.Index(url, marker)
	if idx < 0 {
		return url
	}
	return url[:idx+len(marker)] + strings.Join(ops, "/") + "/" + url[idx+len(marker):]
}

func (s *HttpStore) Delete(id string) error {
	form := strings.NewReader("public_id=" + id + "&api_key=" + s.key)
	url := fmt.Sprintf("%s/v1_1/%s/image/destroy", s.base, s.cloud)
	req, err := http.NewRequest(http.MethodPost, url, form)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.key, s.secret)

	response, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("deleting asset %s: %w", id, errs.ErrExternal)
	}
	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("deleting asset %s: status %d: %w", id, response.StatusCode, errs.ErrExternal)
	}
	return nil
}

// Download pulls a file from a URL, capped at 10MB. Submissions come in
// as Discord attachment links and get re-hosted through Upload.
func Download(client *http.Client, url string) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	response, err := client.Get(url)

	defer func() {
		if response != nil && response.Body != nil {
			_ = response.Body.Close()
		}
	}()

	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", url, errs.ErrExternal)
	}

	limited := io.LimitReader(response.Body, 10*1024*1024)
	return io.ReadAll(limited)
}
