package store

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"time"

	"github.com/modsentry/orchestrator/metrics"
	"github.com/modsentry/orchestrator/types"
)

// Store is the content-addressed artifact store (C1). Identity is the
// SHA-256 fingerprint of the uploaded bytes; a second upload of the same
// bytes under a different name is recorded as an alias rather than a new
// artifact.
type Store struct {
	backend Backend

	// Metrics is optional; Collector's Inc methods are nil-receiver safe.
	Metrics *metrics.Collector
}

// New wraps backend as an artifact store.
func New(backend Backend) *Store {
	return &Store{backend: backend}
}

func objectKey(fingerprint string) string  { return path.Join("objects", fingerprint, "original") }
func metaKey(fingerprint string) string    { return path.Join("meta", fingerprint+".json") }
func extractedKey(fingerprint, rel string) string {
	return path.Join("extracted", fingerprint, rel)
}

// Ingest computes the fingerprint of r's contents, stores the original blob,
// extracts zip-family archives, and records (or updates) the Artifact
// metadata. Ingesting the same bytes twice under different names appends to
// Aliases rather than creating a second artifact.
func (s *Store) Ingest(ctx context.Context, r io.Reader, originalName string) (*types.Artifact, error) {
	spool, err := os.CreateTemp("", "modsentry-ingest-*")
	if err != nil {
		return nil, types.NewError(types.KindInternal, "store.Ingest", err)
	}
	defer os.Remove(spool.Name())
	defer spool.Close()

	hasher := sha256.New()
	size, err := io.Copy(spool, io.TeeReader(r, hasher))
	if err != nil {
		return nil, types.NewError(types.KindInternal, "store.Ingest", fmt.Errorf("spool artifact: %w", err))
	}
	fingerprint := hex.EncodeToString(hasher.Sum(nil))

	existing, err := s.GetArtifact(ctx, fingerprint)
	if err != nil && types.KindOf(err) != types.KindNotFound {
		return nil, err
	}
	if existing != nil {
		s.Metrics.IncArtifactDeduped()
		return s.addAlias(ctx, existing, originalName)
	}

	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		return nil, types.NewError(types.KindInternal, "store.Ingest", err)
	}
	if err := s.backend.Write(ctx, objectKey(fingerprint), spool); err != nil {
		return nil, types.NewError(types.KindInternal, "store.Ingest", err)
	}

	detectedType, extractedRoot, err := s.detectAndExtract(ctx, spool, size, fingerprint)
	if err != nil {
		return nil, err
	}

	artifact := &types.Artifact{
		Fingerprint:   fingerprint,
		OriginalName:  originalName,
		Size:          size,
		DetectedType:  detectedType,
		IngestedAt:    time.Now().UTC(),
		ExtractedRoot: extractedRoot,
	}
	if err := s.putArtifact(ctx, artifact); err != nil {
		return nil, err
	}
	s.Metrics.IncArtifactIngested()
	return artifact, nil
}

func (s *Store) detectAndExtract(ctx context.Context, spool *os.File, size int64, fingerprint string) (types.FileType, string, error) {
	zr, err := zip.NewReader(spool, size)
	if err != nil {
		// Not a zip archive at all: treat as an opaque source blob.
		return types.FileTypeSource, "", nil
	}

	ft := sniffFileType(zr)
	root := path.Join("extracted", fingerprint)

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", "", types.NewError(types.KindInvalidInput, "store.extract", fmt.Errorf("open entry %s: %w", f.Name, err))
		}
		err = s.backend.Write(ctx, extractedKey(fingerprint, f.Name), rc)
		rc.Close()
		if err != nil {
			return "", "", types.NewError(types.KindInternal, "store.extract", err)
		}
	}

	return ft, root, nil
}

func (s *Store) addAlias(ctx context.Context, existing *types.Artifact, originalName string) (*types.Artifact, error) {
	for _, a := range existing.Aliases {
		if a == originalName {
			return existing, nil
		}
	}
	if originalName == existing.OriginalName {
		return existing, nil
	}
	existing.Aliases = append(existing.Aliases, originalName)
	if err := s.putArtifact(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *Store) putArtifact(ctx context.Context, a *types.Artifact) error {
	body, err := json.Marshal(a)
	if err != nil {
		return types.NewError(types.KindInternal, "store.putArtifact", err)
	}
	if err := s.backend.Write(ctx, metaKey(a.Fingerprint), bytes.NewReader(body)); err != nil {
		return types.NewError(types.KindInternal, "store.putArtifact", err)
	}
	return nil
}

// GetArtifact returns the metadata record for fingerprint, or a NotFound
// DomainError if no artifact was ingested under that fingerprint.
func (s *Store) GetArtifact(ctx context.Context, fingerprint string) (*types.Artifact, error) {
	exists, err := s.backend.Exists(ctx, metaKey(fingerprint))
	if err != nil {
		return nil, types.NewError(types.KindInternal, "store.GetArtifact", err)
	}
	if !exists {
		return nil, types.NewError(types.KindNotFound, "store.GetArtifact", fmt.Errorf("fingerprint %s", fingerprint))
	}

	rc, err := s.backend.Open(ctx, metaKey(fingerprint))
	if err != nil {
		return nil, types.NewError(types.KindInternal, "store.GetArtifact", err)
	}
	defer rc.Close()

	var a types.Artifact
	if err := json.NewDecoder(rc).Decode(&a); err != nil {
		return nil, types.NewError(types.KindInternal, "store.GetArtifact", err)
	}
	return &a, nil
}

// Open returns a reader for the original uploaded bytes of fingerprint.
func (s *Store) Open(ctx context.Context, fingerprint string) (io.ReadCloser, error) {
	rc, err := s.backend.Open(ctx, objectKey(fingerprint))
	if err != nil {
		return nil, types.NewError(types.KindNotFound, "store.Open", err)
	}
	return rc, nil
}

// Tarball streams the extracted file tree of fingerprint as a gzip-free tar
// archive, for provisioning external modules over HTTP (C8). When fileIDs is
// non-empty, only entries whose relative path matches one of fileIDs are
// included; an empty fileIDs streams the full extracted tree. Returns an
// InvalidInput error if the artifact has no extracted tree (e.g. plain
// source blobs).
func (s *Store) Tarball(ctx context.Context, fingerprint string, fileIDs []string, w io.Writer) error {
	artifact, err := s.GetArtifact(ctx, fingerprint)
	if err != nil {
		return err
	}
	if artifact.ExtractedRoot == "" {
		return types.NewError(types.KindInvalidInput, "store.Tarball", fmt.Errorf("fingerprint %s has no extracted tree", fingerprint))
	}

	lister, ok := s.backend.(objectLister)
	if !ok {
		return types.NewError(types.KindUnavailable, "store.Tarball", fmt.Errorf("backend does not support listing"))
	}
	keys, err := lister.List(ctx, path.Join("extracted", fingerprint)+"/")
	if err != nil {
		return types.NewError(types.KindInternal, "store.Tarball", err)
	}
	sort.Strings(keys)

	var allow map[string]bool
	if len(fileIDs) > 0 {
		allow = make(map[string]bool, len(fileIDs))
		for _, id := range fileIDs {
			allow[id] = true
		}
	}

	prefix := path.Join("extracted", fingerprint) + "/"
	tw := tar.NewWriter(w)
	for _, key := range keys {
		rel := key[len(prefix):]
		if allow != nil && !allow[rel] {
			continue
		}

		rc, err := s.backend.Open(ctx, key)
		if err != nil {
			return types.NewError(types.KindInternal, "store.Tarball", err)
		}

		buf, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return types.NewError(types.KindInternal, "store.Tarball", err)
		}

		hdr := &tar.Header{Name: rel, Mode: 0o644, Size: int64(len(buf))}
		if err := tw.WriteHeader(hdr); err != nil {
			return types.NewError(types.KindInternal, "store.Tarball", err)
		}
		if _, err := tw.Write(buf); err != nil {
			return types.NewError(types.KindInternal, "store.Tarball", err)
		}
	}
	return tw.Close()
}

// objectLister is implemented by backends that can enumerate keys under a
// prefix. LocalBackend and S3Backend both implement it.
type objectLister interface {
	List(ctx context.Context, prefix string) ([]string, error)
}
