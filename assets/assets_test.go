package assets

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/eclipsabot/eclipsa/errs"
)

func Test_Upload(t *testing.T) {
	var gotPath string
	var gotFolder string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %s", err)
		}
		gotFolder = r.FormValue("folder")
		_ = json.NewEncoder(w).Encode(Asset{
			Id:  "discord_memes/abc123",
			Url: "https://res.host.test/image/upload/v1/discord_memes/abc123.png",
		})
	}))
	defer server.Close()

	store := NewWithBase(server.URL)
	asset, err := store.Upload([]byte("image-bytes"), "discord_memes")
	if err != nil {
		t.Fatal(err)
	}

	if !strings.HasSuffix(gotPath, "/auto/upload") {
		t.Errorf("unexpected upload path %q", gotPath)
	}
	if gotFolder != "discord_memes" {
		t.Errorf("expected folder discord_memes, got %q", gotFolder)
	}
	if asset.Id != "discord_memes/abc123" || asset.Url == "" {
		t.Errorf("unexpected asset %+v", asset)
	}
}

func Test_Upload_serverError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	store := NewWithBase(server.URL)
	_, err := store.Upload([]byte("image-bytes"), "discord_memes")
	if !errors.Is(err, errs.ErrExternal) {
		t.Errorf("expected external error, got %v", err)
	}
}

func Test_Transform(t *testing.T) {
	store := NewWithBase("http://unused")
	url := "https://res.host.test/image/upload/v1/discord_memes/abc123.png"

	got := store.Transform(url, "w_2000,c_limit", "w_800,c_scale")
	want := "https://res.host.test/image/upload/w_2000,c_limit/w_800,c_scale/v1/discord_memes/abc123.png"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	if got = store.Transform(url); got != url {
		t.Errorf("no ops should leave the url alone, got %q", got)
	}
	if got = store.Transform("https://elsewhere.test/file.png", "w_800"); got != "https://elsewhere.test/file.png" {
		t.Errorf("foreign urls pass through, got %q", got)
	}
}

func Test_Delete(t *testing.T) {
	var gotId string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %s", err)
		}
		gotId = r.FormValue("public_id")
	}))
	defer server.Close()

	store := NewWithBase(server.URL)
	if err := store.Delete("discord_memes/abc123"); err != nil {
		t.Fatal(err)
	}
	if gotId != "discord_memes/abc123" {
		t.Errorf("expected public_id forwarded, got %q", gotId)
	}
}

func Test_Download(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("payload"))
	}))
	defer server.Close()

	data, err := Download(server.Client(), server.URL+"/file.png")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "payload" {
		t.Errorf("expected payload, got %q", data)
	}
}
