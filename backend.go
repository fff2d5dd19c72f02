package main

import (
	"crypto/tls"
	"net/http"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"chat-client/internal/apiclient"
	"chat-client/internal/config"
)

// newBackend builds the credential handle and the API client sharing it.
func newBackend(cfg *config.Config, logger logrus.FieldLogger) (*apiclient.Client, *apiclient.CredentialHandle, error) {
	creds, err := apiclient.NewCredentialHandle(cfg.APIBase)
	if err != nil {
		return nil, nil, errors.Wrap(err, "credential handle")
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		logger.Warn("tls verification disabled for the backend")
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	client := apiclient.NewClient(cfg.APIBase,
		apiclient.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout, Transport: transport}),
		apiclient.WithCredentials(creds),
		apiclient.WithLogger(logger),
	)
	return client, creds, nil
}
