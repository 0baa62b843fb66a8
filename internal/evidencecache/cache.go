// Package evidencecache implements the evidence cache: a
// content-addressed, persisted cache of pipeline run artifacts with
// explicit Created/Reused/Refreshed decisions and structured invalidation
// reasons. Uses SHA-256 content keying, combined with this module's
// fingerprinter, file-system facade, and per-key lock file.
package evidencecache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/outsystems-tools/ddl-tightener/internal/clock"
	"github.com/outsystems-tools/ddl-tightener/internal/fingerprint"
	"github.com/outsystems-tools/ddl-tightener/internal/fsfacade"
	"github.com/outsystems-tools/ddl-tightener/internal/lockfile"
	"github.com/outsystems-tools/ddl-tightener/internal/result"
	"github.com/outsystems-tools/ddl-tightener/internal/types"
)

const manifestVersion = 1

// Structured reason keys recorded on a Refreshed decision.
const (
	ReasonRefreshRequested      = "reason.refreshRequested"
	ReasonTTLExpired            = "reason.ttlExpired"
	ReasonModuleSelectionChange = "reason.moduleSelectionChanged"
	ReasonMetadataMismatch      = "reason.metadataMismatch"
)

// defaultLockTimeout bounds how long Consult waits for another process
// holding the same cache key's lock before giving up.
const defaultLockTimeout = 30 * time.Second

// Request is one call to Consult.
type Request struct {
	// Root is the evidence-cache root directory; entries live at
	// Root/<key>/.
	Root string
	// Inputs derives the cache key and supplies the artifact files to
	// copy into the entry on Create/Refresh.
	Inputs Inputs
	// Refresh forces a Refresh decision regardless of cache state
	// (reason.refreshRequested).
	Refresh bool
	// TTL, if set, is recorded as expiresAtUtc = now + TTL on
	// Create/Refresh.
	TTL *time.Duration
	// NoLock disables the per-key advisory lock, for callers that already
	// serialize cache access themselves (e.g. single-threaded tests).
	NoLock bool
}

// Cache is the evidence-cache entry point.
type Cache struct {
	fs    fsfacade.FS
	clock clock.Clock
}

// New builds a Cache over the given file-system facade and clock.
func New(fs fsfacade.FS, c clock.Clock) *Cache {
	return &Cache{fs: fs, clock: c}
}

// Consult evaluates the cache protocol for req and returns the resulting
// directory, manifest, decision, and reasons.
func (c *Cache) Consult(ctx context.Context, req Request) result.Result[types.CacheResult] {
	fileHashes, fileSizes, err := c.hashInputFiles(req.Inputs.Files)
	if err != nil {
		return result.Err[types.CacheResult](*err)
	}

	key := ComputeKey(req.Inputs, fileHashes)
	cacheDir := filepath.Join(req.Root, key)
	manifestPath := filepath.Join(cacheDir, "manifest.json")

	if !req.NoLock {
		// The lock is a real OS file lock and bypasses the FS facade (it
		// must work across processes, not just within one), so its sidecar
		// directory is created on the real filesystem regardless of which
		// FS implementation the rest of the cache uses.
		if err := os.MkdirAll(req.Root, 0o755); err != nil {
			return result.Err[types.CacheResult](result.NewError("cache.create.failed", err.Error()))
		}
		lock := lockfile.New(filepath.Join(req.Root, key+".lock"))
		if err := lock.Acquire(ctx, defaultLockTimeout); err != nil {
			return result.Err[types.CacheResult](result.NewError("cache.locked", fmt.Sprintf("cache entry %s is locked by another process", key)).WithDetail("key", key))
		}
		defer lock.Release()
	}

	now := c.clock.NowUTC()

	existing, hasExisting := c.readManifest(manifestPath)

	if !hasExisting {
		return c.createOrRefresh(req, cacheDir, manifestPath, key, fileHashes, fileSizes, now, types.CacheCreated, nil)
	}

	if req.Refresh {
		return c.createOrRefresh(req, cacheDir, manifestPath, key, fileHashes, fileSizes, now, types.CacheRefreshed,
			types.CacheDecisionReasons{ReasonRefreshRequested: "true"})
	}

	if existing.ExpiresAtUTC != nil && now.After(*existing.ExpiresAtUTC) {
		return c.createOrRefresh(req, cacheDir, manifestPath, key, fileHashes, fileSizes, now, types.CacheRefreshed,
			types.CacheDecisionReasons{ReasonTTLExpired: "true"})
	}

	if existing.ModuleSelection.Hash != req.Inputs.ModuleSelection.Hash {
		return c.createOrRefresh(req, cacheDir, manifestPath, key, fileHashes, fileSizes, now, types.CacheRefreshed,
			types.CacheDecisionReasons{ReasonModuleSelectionChange: "true"})
	}

	if mismatchKey, mismatched := metadataMismatch(existing.Metadata, req.Inputs.Metadata); mismatched {
		return c.createOrRefresh(req, cacheDir, manifestPath, key, fileHashes, fileSizes, now, types.CacheRefreshed,
			types.CacheDecisionReasons{ReasonMetadataMismatch: "true", "reason.metadataKey": mismatchKey})
	}

	existing.LastValidatedAtUTC = now
	data, jsonErr := json.MarshalIndent(existing, "", "  ")
	if jsonErr != nil {
		return result.Err[types.CacheResult](result.NewError("cache.manifest.writeFailed", jsonErr.Error()))
	}
	if err := c.fs.WriteFileAtomic(manifestPath, data, 0o644); err != nil {
		return result.Err[types.CacheResult](result.NewError("cache.manifest.writeFailed", err.Error()))
	}

	return result.Ok(types.CacheResult{
		CacheDirectory: cacheDir,
		Manifest:       existing,
		Decision:       types.CacheReused,
		Reasons:        types.CacheDecisionReasons{},
	})
}

// metadataMismatch reports the first requested metadata key, in sorted key
// order, whose persisted value differs.
func metadataMismatch(persisted, requested map[string]string) (string, bool) {
	keys := make([]string, 0, len(requested))
	for k := range requested {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if persisted[k] != requested[k] {
			return k, true
		}
	}
	return "", false
}

func (c *Cache) hashInputFiles(files []InputFile) (map[string]string, map[string]int64, *result.ErrorRecord) {
	hashes := make(map[string]string, len(files))
	sizes := make(map[string]int64, len(files))
	for _, f := range files {
		if f.Path == "" {
			continue
		}
		data, err := c.fs.ReadFile(f.Path)
		if err != nil {
			errRec := result.NewError(fmt.Sprintf("cache.%s.notFound", f.Kind), fmt.Sprintf("required input %q not found: %v", f.Path, err)).
				WithDetail("path", f.Path).WithDetail("kind", f.Kind)
			return nil, nil, &errRec
		}
		hashes[f.Kind] = fingerprint.Hex(data)
		sizes[f.Kind] = int64(len(data))
	}
	return hashes, sizes, nil
}

// readManifest parses the persisted manifest at path. A missing file,
// unreadable file, or corrupt JSON is all treated as absent, so the next
// call regenerates the entry.
func (c *Cache) readManifest(path string) (types.CacheManifest, bool) {
	data, err := c.fs.ReadFile(path)
	if err != nil {
		return types.CacheManifest{}, false
	}
	var m types.CacheManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return types.CacheManifest{}, false
	}
	return m, true
}

func (c *Cache) createOrRefresh(
	req Request,
	cacheDir, manifestPath, key string,
	fileHashes map[string]string,
	fileSizes map[string]int64,
	now time.Time,
	decision types.CacheDecision,
	reasons types.CacheDecisionReasons,
) result.Result[types.CacheResult] {
	if decision == types.CacheRefreshed {
		if err := c.fs.RemoveAll(cacheDir); err != nil {
			return result.Err[types.CacheResult](result.NewError("cache.refresh.failed", err.Error()))
		}
	}
	if err := c.fs.MkdirAll(cacheDir, 0o755); err != nil {
		return result.Err[types.CacheResult](result.NewError("cache.create.failed", err.Error()))
	}

	artifacts := make([]types.CacheArtifact, 0, len(req.Inputs.Files))
	for _, f := range req.Inputs.Files {
		if f.Path == "" {
			continue
		}
		data, err := c.fs.ReadFile(f.Path)
		if err != nil {
			return result.Err[types.CacheResult](result.NewError(fmt.Sprintf("cache.%s.notFound", f.Kind), err.Error()))
		}
		dest := filepath.Join(cacheDir, filepath.Base(f.Path))
		if err := c.fs.WriteFileAtomic(dest, data, 0o644); err != nil {
			return result.Err[types.CacheResult](result.NewError("cache.artifact.writeFailed", err.Error()))
		}
		artifacts = append(artifacts, types.CacheArtifact{
			RelativePath: filepath.Base(f.Path),
			Kind:         f.Kind,
			SHA256:       fileHashes[f.Kind],
			SizeBytes:    fileSizes[f.Kind],
		})
	}

	var expiresAt *time.Time
	if req.TTL != nil {
		t := now.Add(*req.TTL)
		expiresAt = &t
	}

	manifest := types.CacheManifest{
		Version:            manifestVersion,
		Key:                key,
		Command:            req.Inputs.CommandName,
		CreatedAtUTC:       now,
		LastValidatedAtUTC: now,
		ExpiresAtUTC:       expiresAt,
		ModuleSelection:    req.Inputs.ModuleSelection,
		Metadata:           req.Inputs.Metadata,
		Artifacts:          artifacts,
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return result.Err[types.CacheResult](result.NewError("cache.manifest.writeFailed", err.Error()))
	}
	if err := c.fs.WriteFileAtomic(manifestPath, data, 0o644); err != nil {
		return result.Err[types.CacheResult](result.NewError("cache.manifest.writeFailed", err.Error()))
	}

	if reasons == nil {
		reasons = types.CacheDecisionReasons{}
	}

	return result.Ok(types.CacheResult{
		CacheDirectory: cacheDir,
		Manifest:       manifest,
		Decision:       decision,
		Reasons:        reasons,
	})
}
