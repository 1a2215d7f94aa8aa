package enum

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"github.com/praetorian-inc/kwmatch/pkg/types"
)

// AzureAPI is the subset of blob storage used for enumeration.
type AzureAPI interface {
	// ListBlobs calls fn for every blob under prefix.
	ListBlobs(ctx context.Context, container, prefix string, fn func(name string, size int64) error) error
	// Download opens a blob for reading.
	Download(ctx context.Context, container, name string) (io.ReadCloser, error)
}

// AzureClient adapts an azblob client to AzureAPI.
type AzureClient struct {
	client *azblob.Client
}

// NewAzureClient connects with a connection string, or anonymously (or by
// SAS token in the URL) to a service URL.
func NewAzureClient(connectionString, serviceURL string) (*AzureClient, error) {
	var (
		client *azblob.Client
		err    error
	)
	switch {
	case connectionString != "":
		client, err = azblob.NewClientFromConnectionString(connectionString, nil)
	case serviceURL != "":
		client, err = azblob.NewClientWithNoCredential(serviceURL, nil)
	default:
		return nil, fmt.Errorf("connection string or service URL is required")
	}
	if err != nil {
		return nil, fmt.Errorf("creating Azure client: %w", err)
	}
	return &AzureClient{client: client}, nil
}

// ListBlobs pages through a container listing.
func (a *AzureClient) ListBlobs(ctx context.Context, container, prefix string, fn func(string, int64) error) error {
	opts := &azblob.ListBlobsFlatOptions{}
	if prefix != "" {
		opts.Prefix = &prefix
	}
	pager := a.client.NewListBlobsFlatPager(container, opts)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return err
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			var size int64
			if item.Properties != nil && item.Properties.ContentLength != nil {
				size = *item.Properties.ContentLength
			}
			if err := fn(*item.Name, size); err != nil {
				return err
			}
		}
	}
	return nil
}

// Download opens a blob stream.
func (a *AzureClient) Download(ctx context.Context, container, name string) (io.ReadCloser, error) {
	resp, err := a.client.DownloadStream(ctx, container, name, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// AzureConfig configures Azure Blob Storage enumeration.
type AzureConfig struct {
	Container string
	Prefix    string
	Config
}

// AzureEnumerator enumerates blobs of an Azure storage container.
type AzureEnumerator struct {
	api    AzureAPI
	config AzureConfig
}

// NewAzureEnumerator creates an enumerator over api.
func NewAzureEnumerator(api AzureAPI, cfg AzureConfig) (*AzureEnumerator, error) {
	if cfg.Container == "" {
		return nil, fmt.Errorf("container is required")
	}
	return &AzureEnumerator{api: api, config: cfg}, nil
}

// Enumerate yields the text content of each blob under the prefix.
func (e *AzureEnumerator) Enumerate(ctx context.Context, fn Callback) error {
	err := e.api.ListBlobs(ctx, e.config.Container, e.config.Prefix, func(name string, size int64) error {
		if err := canceled(ctx); err != nil {
			return err
		}
		if strings.HasSuffix(name, "/") {
			return nil
		}
		if e.config.MaxFileSize > 0 && size > e.config.MaxFileSize {
			return nil
		}

		body, err := e.api.Download(ctx, e.config.Container, name)
		if err != nil {
			return fmt.Errorf("downloading %s: %w", name, err)
		}
		content, err := io.ReadAll(body)
		body.Close()
		if err != nil {
			return fmt.Errorf("reading %s: %w", name, err)
		}

		prov := types.ObjectProvenance{Service: "azblob", Container: e.config.Container, Key: name}
		return emit(e.config.Config, name, content, prov, fn)
	})
	if err != nil {
		return fmt.Errorf("enumerating container %s: %w", e.config.Container, err)
	}
	return nil
}
