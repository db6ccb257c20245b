package loader

import (
	"context"
	"net/url"
	"path"
	"strings"

	"github.com/Carmen-Shannon/oxy-import/common"
	"github.com/Carmen-Shannon/oxy-import/engine/model"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// primitiveKey addresses one primitive of one mesh.
type primitiveKey struct {
	mesh, primitive int
}

// importContext is the state shared by the stages of one import.
// It is only touched from the scheduler goroutine; worker jobs receive copies of what they need.
type importContext struct {
	name    string
	baseDir string

	doc    *gltfDocument
	parser gltfParser
	cache  *ImportCache
	caps   Capabilities
	jobs   *jobRunner

	source  ByteSource
	archive Archive

	names    *nameRegistry
	logger   *zap.Logger
	progress ProgressSink
	warnings []model.ImportWarning

	// Filled by the mesh stage: skinning channels of compressed primitives, already
	// read back from the decompressor.
	compressedSkinning map[primitiveKey]*DecodedGeometry

	// Filled by the scene stage.
	root      *model.SceneObject
	meshNodes map[int][]int
	skinNodes map[int][]int

	defaultMaterial *common.ImportedMaterial

	downloadsStarted int
	downloadsDone    int
}

func newImportContext(name, baseDir string, parser gltfParser, cache *ImportCache, env importEnv) *importContext {
	logger := env.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	progress := env.progress
	if progress == nil {
		progress = nopProgress{}
	}
	return &importContext{
		name:               name,
		baseDir:            baseDir,
		doc:                parser.Document(),
		parser:             parser,
		cache:              cache,
		caps:               env.caps,
		jobs:               env.jobs,
		source:             env.source,
		archive:            env.archive,
		names:              newNameRegistry(),
		logger:             logger,
		progress:           progress,
		compressedSkinning: make(map[primitiveKey]*DecodedGeometry),
		meshNodes:          make(map[int][]int),
		skinNodes:          make(map[int][]int),
	}
}

// warn records a recoverable failure.
func (c *importContext) warn(err *ImportError) {
	c.logger.Warn("import warning",
		zap.String("kind", err.Kind.String()),
		zap.String("entity", err.Entity),
		zap.Int("index", err.Index),
		zap.Error(err.Err),
	)
	c.warnings = append(c.warnings, err.warning())
}

// resolveReference turns a relative URI into a reference for the archive and byte source.
// References under a URL base resolve as URLs; all others are unescaped slash paths.
func (c *importContext) resolveReference(uri string) string {
	if strings.Contains(c.baseDir, "://") && !strings.Contains(uri, "://") {
		base, err := url.Parse(c.baseDir)
		if err == nil {
			if rel, err := url.Parse(uri); err == nil {
				return base.ResolveReference(rel).String()
			}
		}
	}
	if strings.Contains(uri, "://") {
		return uri
	}
	ref, err := url.PathUnescape(uri)
	if err != nil {
		ref = uri
	}
	if c.baseDir == "" || path.IsAbs(ref) {
		return ref
	}
	return path.Join(c.baseDir, ref)
}

// openExternal looks an external reference up in the archive and otherwise starts a fetch job.
// Exactly one of the returned data and job is non-nil on success.
//
// Parameters:
//   - ctx: the import context
//   - entity: the requesting entity kind, for errors
//   - index: the requesting entity index, for errors
//   - uri: the reference as written in the document
//
// Returns:
//   - []byte: the archive entry content
//   - *externalJob: the pending fetch
//   - error: an ErrIO ImportError
func (c *importContext) openExternal(ctx context.Context, entity string, index int, uri string) ([]byte, *externalJob, error) {
	ref := c.resolveReference(uri)
	if c.archive != nil {
		entry := path.Clean(ref)
		data, ok, err := c.archive.Entry(entry)
		if err != nil {
			return nil, nil, wrapImportError(ErrIO, entity, index, err, "archive entry "+entry)
		}
		if ok {
			return data, nil, nil
		}
	}
	if c.source == nil {
		return nil, nil, newImportError(ErrIO, entity, index, "no byte source configured for %q", uri)
	}

	source := c.source
	c.downloadsStarted++
	c.progress.ReportProgress(StageDownload, c.downloadsDone, c.downloadsStarted)
	c.logger.Debug("fetching external reference", zap.String("entity", entity), zap.Int("index", index), zap.String("ref", ref))
	job := c.jobs.submit(ctx, "fetch "+ref, func(ctx context.Context) (any, error) {
		data, err := source.ReadBytes(ctx, ref)
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", ref)
		}
		return data, nil
	})
	return nil, job, nil
}

// finishDownload collects a finished fetch job.
func (c *importContext) finishDownload(job *externalJob, entity string, index int) ([]byte, error) {
	c.downloadsDone++
	c.progress.ReportProgress(StageDownload, c.downloadsDone, c.downloadsStarted)
	data, err := jobResult[[]byte](job)
	if err != nil {
		return nil, wrapImportError(ErrIO, entity, index, err, "external reference")
	}
	return data, nil
}

// material returns the material for a primitive's material index, the default material when absent.
func (c *importContext) material(index *int) (*common.ImportedMaterial, error) {
	if index == nil {
		return c.fallbackMaterial(), nil
	}
	if *index < 0 || *index >= len(c.doc.Materials) {
		return nil, newImportError(ErrReferenceOutOfRange, entityMaterial, *index, "material index out of range")
	}
	m, ok := Lookup[*common.ImportedMaterial](c.cache, KindMaterial, *index)
	if !ok {
		return nil, newImportError(ErrInvalidData, entityMaterial, *index, "material not decoded")
	}
	return m, nil
}

// fallbackMaterial returns the shared material of primitives that reference none.
func (c *importContext) fallbackMaterial() *common.ImportedMaterial {
	if c.defaultMaterial == nil {
		c.defaultMaterial = newDefaultMaterial(c.names.unique(nameCategoryMaterial, "default", "default"))
	}
	return c.defaultMaterial
}
