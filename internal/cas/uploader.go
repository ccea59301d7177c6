package cas

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/himanishpuri/LiveProof/pkg/models"
)

// Uploader sends blobs to a pinning service that accepts a multipart "file"
// field on POST /upload and answers {"cid": ..., "gateway_url": ...}.
type Uploader struct {
	baseURL string
	http    *http.Client
}

func NewUploader(baseURL string, httpClient *http.Client) *Uploader {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Uploader{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

type uploadResponse struct {
	Success    bool   `json:"success"`
	CID        string `json:"cid"`
	GatewayURL string `json:"gateway_url"`
	Error      string `json:"error"`
}

func (u *Uploader) Put(ctx context.Context, name string, data []byte) (models.StoredObject, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return models.StoredObject{}, fmt.Errorf("%w: %v", models.ErrUploadFailed, err)
	}
	if _, err := part.Write(data); err != nil {
		return models.StoredObject{}, fmt.Errorf("%w: %v", models.ErrUploadFailed, err)
	}
	if err := mw.Close(); err != nil {
		return models.StoredObject{}, fmt.Errorf("%w: %v", models.ErrUploadFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.baseURL+"/upload", &body)
	if err != nil {
		return models.StoredObject{}, fmt.Errorf("%w: %v", models.ErrUploadFailed, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := u.http.Do(req)
	if err != nil {
		return models.StoredObject{}, fmt.Errorf("%w: %v", models.ErrUploadFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return models.StoredObject{}, fmt.Errorf("%w: %v", models.ErrUploadFailed, err)
	}

	var ur uploadResponse
	if err := json.Unmarshal(raw, &ur); err != nil {
		return models.StoredObject{}, fmt.Errorf("%w: HTTP %d: %v", models.ErrUploadFailed, resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || ur.CID == "" {
		msg := ur.Error
		if msg == "" {
			msg = "no cid in response"
		}
		return models.StoredObject{}, fmt.Errorf("%w: HTTP %d: %s", models.ErrUploadFailed, resp.StatusCode, msg)
	}

	return models.StoredObject{CID: ur.CID, URL: ur.GatewayURL}, nil
}
