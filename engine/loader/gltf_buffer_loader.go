package loader

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// gltfBufferLoader resolves document buffers into the import cache, one buffer per unit.
// External buffers are fetched on the worker pool; the unit yields until the fetch lands.
type gltfBufferLoader struct {
	ic      *importContext
	pending map[int]*externalJob
}

func newGLTFBufferLoader(ic *importContext) *gltfBufferLoader {
	return &gltfBufferLoader{ic: ic, pending: make(map[int]*externalJob)}
}

// task returns the buffer stage.
func (b *gltfBufferLoader) task() Task {
	return newStageTask(StageBuffer, len(b.ic.doc.Buffers), b.ic.progress, b.loadBuffer)
}

func (b *gltfBufferLoader) loadBuffer(ctx context.Context, i int) StepResult {
	if job, ok := b.pending[i]; ok {
		if !job.Done() {
			return stepYield
		}
		delete(b.pending, i)
		data, err := b.ic.finishDownload(job, entityBuffer, i)
		if err != nil {
			return stepFailed(err)
		}
		return b.publish(i, data)
	}

	buf := &b.ic.doc.Buffers[i]
	switch {
	case buf.URI == "":
		bin := b.ic.parser.BinaryChunk()
		if i != 0 || bin == nil {
			return stepFailed(newImportError(ErrInvalidData, entityBuffer, i, "buffer has no uri and no binary chunk"))
		}
		return b.publish(i, bin)

	case strings.HasPrefix(buf.URI, "data:"):
		data, _, err := gltfDecodeDataURI(buf.URI)
		if err != nil {
			return stepFailed(wrapImportError(ErrInvalidData, entityBuffer, i, err, "data uri"))
		}
		return b.publish(i, data)
	}

	data, job, err := b.ic.openExternal(ctx, entityBuffer, i, buf.URI)
	if err != nil {
		return stepFailed(err)
	}
	if job == nil {
		return b.publish(i, data)
	}
	b.pending[i] = job
	return stepContinue
}

func (b *gltfBufferLoader) publish(i int, data []byte) StepResult {
	buf := &b.ic.doc.Buffers[i]
	if len(data) < buf.ByteLength {
		return stepFailed(newImportError(ErrInvalidData, entityBuffer, i,
			"buffer holds %d bytes, byteLength is %d", len(data), buf.ByteLength))
	}
	if err := b.ic.cache.Publish(KindBuffer, i, data[:buf.ByteLength]); err != nil {
		return stepFailed(wrapImportError(ErrInvalidData, entityBuffer, i, err, "publish buffer"))
	}
	b.ic.logger.Debug("buffer loaded", zap.Int("buffer", i), zap.Int("bytes", buf.ByteLength))
	return stepDone
}
