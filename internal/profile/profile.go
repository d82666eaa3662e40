// Package profile loads and saves the salesperson profile document.
package profile

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/schema"
)

// FileName is the profile document name inside the output directory.
const FileName = "profile_data.json"

// ErrNoProfile is returned by Load when no usable profile exists: the file
// is missing, cannot be decoded, or fails validation.
var ErrNoProfile = eris.New("profile: no profile available")

// Repository reads and writes the profile document in a directory.
type Repository struct {
	dir       string
	validator *schema.Validator
}

// NewRepository stores the profile under dir (normally "outputs").
func NewRepository(dir string, v *schema.Validator) *Repository {
	return &Repository{dir: dir, validator: v}
}

// Path returns the location of the profile document.
func (r *Repository) Path() string {
	return filepath.Join(r.dir, FileName)
}

// Save validates p and writes it as indented UTF-8 JSON. It returns the
// normalized profile that was written.
func (r *Repository) Save(p model.UserProfile) (*model.UserProfile, error) {
	raw, err := p.Map()
	if err != nil {
		return nil, err
	}
	valid, verr := r.validator.Profile(raw)
	if verr != nil {
		return nil, eris.Wrap(verr, "profile: validate")
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(valid); err != nil {
		return nil, eris.Wrap(err, "profile: encode")
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "profile: create %s", r.dir)
	}
	path := r.Path()
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return nil, eris.Wrapf(err, "profile: write %s", path)
	}

	zap.L().Info("profile: saved", zap.String("path", path), zap.String("name", valid.Name))
	return valid, nil
}

// Load reads and validates the profile. Any failure is logged and reported
// as ErrNoProfile.
func (r *Repository) Load() (*model.UserProfile, error) {
	path := r.Path()
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		zap.L().Warn("profile: file not found", zap.String("path", path))
		return nil, ErrNoProfile
	}
	if err != nil {
		zap.L().Error("profile: read failed", zap.String("path", path), zap.Error(err))
		return nil, ErrNoProfile
	}

	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		zap.L().Error("profile: decode failed", zap.String("path", path), zap.Error(err))
		return nil, ErrNoProfile
	}
	p, verr := r.validator.Profile(raw)
	if verr != nil {
		zap.L().Error("profile: validation failed", zap.String("path", path), zap.Error(verr))
		return nil, ErrNoProfile
	}

	zap.L().Debug("profile: loaded", zap.String("path", path))
	return p, nil
}
