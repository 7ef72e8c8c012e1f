package sheets

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/option"
	sheetsv4 "google.golang.org/api/sheets/v4"
)

type Client struct {
	srv           *sheetsv4.Service
	spreadsheetID string
}

// Credentials identifies the service account used to reach the spreadsheet.
// Either ClientEmail+PrivateKey or JSONPath must be set.
type Credentials struct {
	ClientEmail string
	PrivateKey  string
	JSONPath    string
}

// Options turns the credentials into client options. A non-empty endpoint
// overrides the Sheets API base URL.
func (c Credentials) Options(endpoint string) ([]option.ClientOption, error) {
	var opts []option.ClientOption
	switch {
	case c.ClientEmail != "" && c.PrivateKey != "":
		conf := &jwt.Config{
			Email:      c.ClientEmail,
			PrivateKey: []byte(c.PrivateKey),
			Scopes:     []string{sheetsv4.SpreadsheetsScope},
			TokenURL:   google.JWTTokenURL,
		}
		opts = append(opts, option.WithTokenSource(conf.TokenSource(context.Background())))
	case c.JSONPath != "":
		if _, err := os.Stat(c.JSONPath); err != nil {
			return nil, fmt.Errorf("service account json: %w", err)
		}
		opts = append(opts,
			option.WithCredentialsFile(c.JSONPath),
			option.WithScopes(sheetsv4.SpreadsheetsScope),
		)
	default:
		return nil, fmt.Errorf("no service account credentials")
	}
	if endpoint = strings.TrimSpace(endpoint); endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	return opts, nil
}

func New(ctx context.Context, spreadsheetID string, opts ...option.ClientOption) (*Client, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, fmt.Errorf("spreadsheet id is empty")
	}
	srv, err := sheetsv4.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{srv: srv, spreadsheetID: spreadsheetID}, nil
}

func (c *Client) SpreadsheetID() string { return c.spreadsheetID }
