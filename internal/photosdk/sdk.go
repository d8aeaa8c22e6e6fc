package photosdk

import (
	"fmt"
	"time"

	"github.com/imroc/req/v3"
	"github.com/openmined/photobox/internal/utils"
	"github.com/openmined/photobox/internal/version"
)

// PhotoSDK is the client for the PhotoBox HTTP API
type PhotoSDK struct {
	client  *req.Client
	baseURL string
	Albums  *AlbumAPI
	Photos  *PhotoAPI
}

// New creates a client for the server at baseURL
func New(baseURL string) (*PhotoSDK, error) {
	if baseURL == "" {
		return nil, ErrNoServerURL
	} else if !utils.IsValidURL(baseURL) {
		return nil, fmt.Errorf("sdk: invalid server url %q", baseURL)
	}

	client := req.C().
		SetBaseURL(baseURL).
		SetCommonRetryCount(3).
		SetCommonRetryFixedInterval(1*time.Second).
		SetUserAgent(version.UserAgent()).
		SetCommonHeader(HeaderPhotoBoxVersion, version.Version).
		SetCommonErrorResult(&APIError{}).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal)

	return &PhotoSDK{
		client:  client,
		baseURL: baseURL,
		Albums:  newAlbumAPI(client),
		Photos:  newPhotoAPI(client),
	}, nil
}

func (s *PhotoSDK) BaseURL() string {
	return s.baseURL
}

// SetDebug dumps requests and responses to stdout
func (s *PhotoSDK) SetDebug(debug bool) {
	if debug {
		s.client.EnableDumpAllWithoutRequestBody()
	} else {
		s.client.DisableDumpAll()
	}
}
