// Package registry persists named connection definitions in a TOML
// document, with every field independently encrypted by the crypto
// engine before it touches disk.
package registry

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"dbconnect/internal/crypto"
	"dbconnect/internal/dberr"
	"dbconnect/internal/models"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
)

const (
	// DocumentVersion is written into new registry files.
	DocumentVersion = "1.0.0"

	registryFileName = "connections.toml"
	keyFileName      = "encryption.key"

	filePerm = 0o600
)

// SupportedVersions lists the document versions this build can read.
var SupportedVersions = []string{"1.0.0", "1.1.0"}

type metadata struct {
	Created         string   `toml:"created"`
	LastModified    string   `toml:"last_modified"`
	ConnectionOrder []string `toml:"connection_order"`
}

// document is the on-disk registry layout. Connections map a name to a
// field → ciphertext map; nothing under connections is plaintext.
type document struct {
	Version     string                       `toml:"version"`
	AppName     string                       `toml:"app_name"`
	Connections map[string]map[string]string `toml:"connections"`
	Metadata    metadata                     `toml:"metadata"`
}

// Info summarizes the registry without decrypting anything.
type Info struct {
	Version         string
	AppName         string
	ConnectionCount int
	Created         string
	LastModified    string
	Path            string
}

// Store is the encrypted connection registry. It owns the registry file
// and the key material file beside it. Designed for single-process
// ownership; see the manager for locking.
type Store struct {
	appName string
	dir     string
	path    string
	keyPath string
	engine  *crypto.Engine
	log     zerolog.Logger
}

// Open loads (or initializes) the registry for app inside dir. A missing
// registry file is created with an empty connection map; key material is
// created on first use and loaded thereafter.
func Open(appName, dir string, log zerolog.Logger) (*Store, error) {
	if appName == "" {
		return nil, dberr.New(dberr.KindConfig, "app name must not be empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, dberr.Wrap(dberr.KindConfig, "creating registry directory", err)
	}

	s := &Store{
		appName: appName,
		dir:     dir,
		path:    filepath.Join(dir, registryFileName),
		keyPath: filepath.Join(dir, keyFileName),
		log:     log.With().Str("component", "registry").Logger(),
	}

	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		if err := s.save(s.defaultDocument()); err != nil {
			return nil, err
		}
		s.log.Info().Str("path", s.path).Msg("created registry file")
	} else if err != nil {
		return nil, dberr.Wrap(dberr.KindConfig, "checking registry file", err)
	}

	if err := s.loadOrCreateKey(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the registry file location.
func (s *Store) Path() string { return s.path }

// KeyPath returns the key material file location.
func (s *Store) KeyPath() string { return s.keyPath }

func (s *Store) defaultDocument() *document {
	now := time.Now().Format(time.RFC3339)
	return &document{
		Version:     DocumentVersion,
		AppName:     s.appName,
		Connections: map[string]map[string]string{},
		Metadata: metadata{
			Created:         now,
			LastModified:    now,
			ConnectionOrder: []string{},
		},
	}
}

func (s *Store) loadOrCreateKey() error {
	raw, err := os.ReadFile(s.keyPath)
	switch {
	case err == nil:
		var material crypto.KeyMaterial
		if err := toml.Unmarshal(raw, &material); err != nil {
			return dberr.Wrap(dberr.KindConfig, "parsing key material file", err)
		}
		engine, err := crypto.Restore(material)
		if err != nil {
			return err
		}
		s.engine = engine
		s.log.Debug().Msg("loaded encryption key")
		return nil
	case errors.Is(err, os.ErrNotExist):
		engine, err := crypto.New()
		if err != nil {
			return err
		}
		data, err := toml.Marshal(engine.KeyMaterial())
		if err != nil {
			return dberr.Wrap(dberr.KindCrypto, "marshaling key material", err)
		}
		if err := os.WriteFile(s.keyPath, data, filePerm); err != nil {
			return dberr.Wrap(dberr.KindCrypto, "writing key material file", err)
		}
		s.engine = engine
		s.log.Info().Str("path", s.keyPath).Msg("created encryption key")
		return nil
	default:
		return dberr.Wrap(dberr.KindConfig, "reading key material file", err)
	}
}

func (s *Store) load() (*document, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, dberr.Wrap(dberr.KindConfig, "reading registry file", err)
	}
	var doc document
	if err := toml.Unmarshal(raw, &doc); err != nil {
		return nil, dberr.Wrap(dberr.KindConfig, "parsing registry file", err)
	}
	if err := validateDocument(&doc); err != nil {
		return nil, err
	}
	if doc.Connections == nil {
		doc.Connections = map[string]map[string]string{}
	}
	return &doc, nil
}

func validateDocument(doc *document) error {
	if doc.Version == "" {
		return dberr.New(dberr.KindConfig, "registry file is missing required field: version")
	}
	if doc.AppName == "" {
		return dberr.New(dberr.KindConfig, "registry file is missing required field: app_name")
	}
	supported := false
	for _, v := range SupportedVersions {
		if doc.Version == v {
			supported = true
			break
		}
	}
	if !supported {
		return dberr.Newf(dberr.KindConfig, "unsupported registry version %q", doc.Version)
	}
	return nil
}

func (s *Store) save(doc *document) error {
	doc.Metadata.LastModified = time.Now().Format(time.RFC3339)
	if err := validateDocument(doc); err != nil {
		return err
	}
	data, err := toml.Marshal(doc)
	if err != nil {
		return dberr.Wrap(dberr.KindConfig, "marshaling registry file", err)
	}
	if err := os.WriteFile(s.path, data, filePerm); err != nil {
		return dberr.Wrap(dberr.KindConfig, "writing registry file", err)
	}
	s.log.Debug().Str("path", s.path).Msg("registry saved")
	return nil
}

// Add encrypts and persists a definition under name. The backend tag is
// stored as an ordinary encrypted field so the file reveals nothing
// about the target database.
func (s *Store) Add(name string, def models.Definition) error {
	if name == "" {
		return dberr.New(dberr.KindConfig, "connection name must not be empty")
	}
	if def.Type == "" && len(def.Fields) == 0 {
		return dberr.New(dberr.KindConfig, "connection definition must not be empty").WithConn(name)
	}

	doc, err := s.load()
	if err != nil {
		return err
	}
	if _, exists := doc.Connections[name]; exists {
		return dberr.New(dberr.KindConfig, "connection already exists").WithConn(name)
	}

	record, err := s.encryptDefinition(def)
	if err != nil {
		return err
	}
	doc.Connections[name] = record
	doc.Metadata.ConnectionOrder = append(doc.Metadata.ConnectionOrder, name)
	if err := s.save(doc); err != nil {
		return err
	}
	s.log.Info().Str("name", name).Msg("connection added")
	return nil
}

func (s *Store) encryptDefinition(def models.Definition) (map[string]string, error) {
	record := make(map[string]string, len(def.Fields)+1)

	fields := map[string]any{"type": string(def.Type)}
	for k, v := range def.Fields {
		fields[k] = v
	}
	for key, value := range fields {
		serialized, err := models.EncodeField(value)
		if err != nil {
			return nil, dberr.Wrap(dberr.KindConfig, "serializing field", err).WithFields(key)
		}
		token, err := s.engine.Encrypt(serialized)
		if err != nil {
			return nil, err
		}
		record[key] = token
	}
	return record, nil
}

// Get decrypts the definition stored under name. Fields whose envelope
// cannot be decoded degrade to the raw decrypted string with a warning.
func (s *Store) Get(name string) (models.Definition, error) {
	if name == "" {
		return models.Definition{}, dberr.New(dberr.KindConfig, "connection name must not be empty")
	}
	doc, err := s.load()
	if err != nil {
		return models.Definition{}, err
	}
	record, ok := doc.Connections[name]
	if !ok {
		return models.Definition{}, dberr.New(dberr.KindConfig, "connection does not exist").WithConn(name)
	}

	def := models.Definition{Fields: make(map[string]any, len(record))}
	for key, token := range record {
		serialized, err := s.engine.Decrypt(token)
		if err != nil {
			var derr *dberr.Error
			if errors.As(err, &derr) {
				derr.Conn = name
				derr.Fields = append(derr.Fields, key)
			}
			return models.Definition{}, err
		}
		value, err := models.DecodeField(serialized)
		if err != nil {
			s.log.Warn().Str("name", name).Str("field", key).
				Msg("field envelope unreadable, falling back to raw string")
			value = serialized
		}
		if key == "type" {
			if ts, ok := value.(string); ok {
				def.Type = models.DBType(ts)
				continue
			}
		}
		def.Fields[key] = value
	}
	return def, nil
}

// Remove deletes the definition stored under name.
func (s *Store) Remove(name string) error {
	if name == "" {
		return dberr.New(dberr.KindConfig, "connection name must not be empty")
	}
	doc, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := doc.Connections[name]; !ok {
		return dberr.New(dberr.KindConfig, "connection does not exist").WithConn(name)
	}
	delete(doc.Connections, name)
	order := doc.Metadata.ConnectionOrder[:0]
	for _, n := range doc.Metadata.ConnectionOrder {
		if n != name {
			order = append(order, n)
		}
	}
	doc.Metadata.ConnectionOrder = order
	if err := s.save(doc); err != nil {
		return err
	}
	s.log.Info().Str("name", name).Msg("connection removed")
	return nil
}

// Update replaces the definition under name. Implemented as Remove
// followed by Add: a crash between the two steps loses the entry.
func (s *Store) Update(name string, def models.Definition) error {
	if err := s.Remove(name); err != nil {
		return err
	}
	if err := s.Add(name, def); err != nil {
		return err
	}
	s.log.Info().Str("name", name).Msg("connection updated")
	return nil
}

// List returns connection names in insertion order.
func (s *Store) List() ([]string, error) {
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(doc.Connections))
	seen := make(map[string]bool, len(doc.Connections))
	for _, name := range doc.Metadata.ConnectionOrder {
		if _, ok := doc.Connections[name]; ok && !seen[name] {
			names = append(names, name)
			seen[name] = true
		}
	}
	// Entries missing from the order list (hand-edited files) still show up.
	for name := range doc.Connections {
		if !seen[name] {
			names = append(names, name)
		}
	}
	return names, nil
}

// Exists reports whether name is stored, swallowing load errors.
func (s *Store) Exists(name string) bool {
	doc, err := s.load()
	if err != nil {
		return false
	}
	_, ok := doc.Connections[name]
	return ok
}

// Info returns non-sensitive registry metadata.
func (s *Store) Info() (Info, error) {
	doc, err := s.load()
	if err != nil {
		return Info{}, err
	}
	return Info{
		Version:         doc.Version,
		AppName:         doc.AppName,
		ConnectionCount: len(doc.Connections),
		Created:         doc.Metadata.Created,
		LastModified:    doc.Metadata.LastModified,
		Path:            s.path,
	}, nil
}

// Backup copies the registry file. An empty destination produces a
// timestamped copy beside the original. The key file is not copied.
func (s *Store) Backup(dest string) (string, error) {
	if dest == "" {
		stamp := time.Now().Format("20060102_150405")
		dest = filepath.Join(s.dir, fmt.Sprintf("%s.backup.%s", registryFileName, stamp))
	}
	src, err := os.Open(s.path)
	if err != nil {
		return "", dberr.Wrap(dberr.KindConfig, "opening registry file for backup", err)
	}
	defer src.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm)
	if err != nil {
		return "", dberr.Wrap(dberr.KindConfig, "creating backup file", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return "", dberr.Wrap(dberr.KindConfig, "copying registry file", err)
	}
	s.log.Info().Str("path", dest).Msg("registry backed up")
	return dest, nil
}
