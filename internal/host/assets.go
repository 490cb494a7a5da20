package host

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/simple-gravity/gravity-host/internal/wasm"
)

// assetSource reads the files a game requests through fs_load_file.
type assetSource interface {
	Read(ctx context.Context, path string) ([]byte, error)
	String() string
}

// AssetPathError is returned for a requested path that escapes the asset root.
type AssetPathError struct {
	Path string
}

func (e *AssetPathError) Error() string {
	return fmt.Sprintf("asset path '%s' is outside the asset root", e.Path)
}

type dirAssets struct {
	root string
}

func (d *dirAssets) Read(ctx context.Context, path string) ([]byte, error) {
	rel := filepath.FromSlash(path)
	if !filepath.IsLocal(rel) {
		return nil, &AssetPathError{Path: path}
	}
	return os.ReadFile(filepath.Join(d.root, rel))
}

func (d *dirAssets) String() string {
	return d.root
}

type urlAssets struct {
	base   *url.URL
	client *http.Client
}

func (u *urlAssets) Read(ctx context.Context, path string) ([]byte, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, &AssetPathError{Path: path}
	}
	if ref.IsAbs() || ref.Host != "" {
		return nil, &AssetPathError{Path: path}
	}
	source := &wasm.URLModuleSource{URL: u.base.ResolveReference(ref).String(), Client: u.client}
	return source.Bytes(ctx)
}

func (u *urlAssets) String() string {
	return u.base.String()
}

func newAssetSource(root, baseURL string, client *http.Client) (assetSource, error) {
	if baseURL == "" {
		if root == "" {
			root = "."
		}
		return &dirAssets{root: root}, nil
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid asset base URL '%s': %w", baseURL, err)
	}
	// Resolve relative paths inside the base, not next to it.
	if base.Path == "" || base.Path[len(base.Path)-1] != '/' {
		base.Path += "/"
	}
	return &urlAssets{base: base, client: client}, nil
}
