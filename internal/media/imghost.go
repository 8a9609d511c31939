package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/UkralStul/nexus-sync/internal/domain"
)

// DefaultImgHostURL - endpoint стороннего хостинга изображений.
const DefaultImgHostURL = "https://api.imgbb.com/1/upload"

// ImgHost загружает base64-картинку multipart-формой и возвращает data.url из ответа.
type ImgHost struct {
	Endpoint string
	APIKey   string
	HTTP     *http.Client
}

func NewImgHost(endpoint, apiKey string) *ImgHost {
	if endpoint == "" {
		endpoint = DefaultImgHostURL
	}
	return &ImgHost{Endpoint: endpoint, APIKey: apiKey, HTTP: &http.Client{Timeout: time.Minute}}
}

func (h *ImgHost) Upload(ctx context.Context, data []byte) (*domain.ImageRef, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := form.WriteField("image", base64.StdEncoding.EncodeToString(data)); err != nil {
		return nil, err
	}
	if err := form.Close(); err != nil {
		return nil, err
	}

	endpoint := h.Endpoint + "?key=" + url.QueryEscape(h.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, domain.NewError(domain.KindNetwork, "upload", h.Endpoint, err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := h.HTTP.Do(req)
	if err != nil {
		return nil, domain.NewError(domain.KindNetwork, "upload", h.Endpoint, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewError(domain.KindNetwork, "upload", h.Endpoint, err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, domain.Errorf(domain.KindAuth, "upload", h.Endpoint, "status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, domain.Errorf(domain.KindNetwork, "upload", h.Endpoint, "status %d", resp.StatusCode)
	}

	var envelope struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, domain.NewError(domain.KindDecode, "upload", h.Endpoint, err)
	}
	if envelope.Data.URL == "" {
		return nil, domain.Errorf(domain.KindDecode, "upload", h.Endpoint, "response without data.url")
	}
	return domain.RemoteImage(envelope.Data.URL), nil
}
