package storage

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/liveprof/internal/codec"
	"github.com/coral-mesh/liveprof/internal/safe"
	"github.com/coral-mesh/liveprof/pkg/profiledata"
)

// Files writes every profile to {root}/{app}/{base64url(label)}/{unix}.{ext}.
//
// Label directories use the URL-safe base64 alphabet ("-" and "_") so that a
// label never produces a "/" inside its directory name. Trees laid out with
// the standard alphabet ("+" and "/") are not compatible: DecodeLabel rejects
// their directories, and readers of that layout miss labels whose encodings
// differ.
type Files struct {
	root   string
	packer codec.Packer
	logger zerolog.Logger
}

// NewFiles creates a filesystem storage under root.
func NewFiles(root string, packer codec.Packer, logger zerolog.Logger) (*Files, error) {
	if root == "" {
		return nil, fmt.Errorf("files storage requires a path")
	}
	return &Files{
		root:   root,
		packer: packer,
		logger: logger.With().Str("component", "profile_file_storage").Logger(),
	}, nil
}

// EncodeLabel maps a label to its directory name.
func EncodeLabel(label string) string {
	return base64.URLEncoding.EncodeToString([]byte(label))
}

// DecodeLabel reverses EncodeLabel.
func DecodeLabel(dir string) (string, error) {
	b, err := base64.URLEncoding.DecodeString(dir)
	if err != nil {
		return "", fmt.Errorf("invalid label directory %q: %w", dir, err)
	}
	return string(b), nil
}

// Path returns the file a profile is written to.
func (s *Files) Path(app, label string, ts time.Time) string {
	name := fmt.Sprintf("%d.%s", ts.Unix(), s.packer.Extension())
	return filepath.Join(s.root, app, EncodeLabel(label), name)
}

// Save implements liveprof.Storage.
func (s *Files) Save(_ context.Context, app, label string, ts time.Time, data profiledata.Data) error {
	if err := validateApp(app); err != nil {
		return err
	}

	payload, err := s.packer.Pack(data)
	if err != nil {
		return err
	}

	path := s.Path(app, label, ts)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create profile directory: %w", err)
	}
	if err := safe.WriteFileAtomic(path, payload, 0o644); err != nil {
		return err
	}

	s.logger.Debug().Str("path", path).Int("bytes", len(payload)).Msg("Profile written")
	return nil
}

// validateApp keeps the app directory inside the storage root.
func validateApp(app string) error {
	if app == "" || app == "." || app == ".." || strings.ContainsAny(app, `/\`) {
		return fmt.Errorf("invalid app name %q", app)
	}
	return nil
}
