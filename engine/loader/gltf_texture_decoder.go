package loader

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path"
	"strings"

	"github.com/Carmen-Shannon/oxy-import/common"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ktx2Type is the container consumed by texture transcoders.
var ktx2Type = types.NewType("ktx2", "image/ktx2")

var ktx2Magic = []byte{0xAB, 'K', 'T', 'X', ' ', '2', '0', 0xBB, '\r', '\n', 0x1A, '\n'}

var errNoTranscoder = errors.New("no texture transcoder configured")

func init() {
	filetype.AddMatcher(ktx2Type, func(buf []byte) bool {
		return bytes.HasPrefix(buf, ktx2Magic)
	})
}

// gltfTextureDecoderImpl is the implementation of the gltfTextureDecoder interface.
type gltfTextureDecoderImpl struct {
	ic    *importContext
	loads map[int]*imageLoad
}

// gltfTextureDecoder builds texture resources. Each texture is its own sub-task so that
// textures waiting on a fetch or a decode do not block the others.
type gltfTextureDecoder interface {
	// Task returns the texture stage.
	Task() Task
}

var _ gltfTextureDecoder = &gltfTextureDecoderImpl{}

// imageLoad is the in-flight state of one source image. Textures sharing an image share its load.
type imageLoad struct {
	mime   string
	data   []byte
	fetch  *externalJob
	decode *externalJob
}

func newGLTFTextureDecoder(ic *importContext) gltfTextureDecoder {
	return &gltfTextureDecoderImpl{ic: ic, loads: make(map[int]*imageLoad)}
}

func (d *gltfTextureDecoderImpl) Task() Task {
	doc := d.ic.doc
	tasks := make([]Task, len(doc.Textures))
	for i := range doc.Textures {
		tasks[i] = &textureTask{d: d, index: i}
	}
	started := false
	runner := NewInterleavedRunner(tasks, func(completed, total int) {
		d.ic.progress.ReportProgress(StageTexture, completed, total)
	})
	return TaskFunc(func(ctx context.Context) StepResult {
		if !started {
			started = true
			d.ic.progress.ReportProgress(StageTexture, 0, len(tasks))
		}
		return runner.Resume(ctx)
	})
}

// textureTask decodes one texture.
type textureTask struct {
	d        *gltfTextureDecoderImpl
	index    int
	resolved bool
	image    int
}

func (t *textureTask) Resume(ctx context.Context) StepResult {
	if !t.resolved {
		source, err := t.d.resolveSource(t.index)
		if err != nil {
			return stepFailed(err)
		}
		t.image, t.resolved = source, true
		if source < 0 {
			return t.d.publishTexture(t.index, -1, nil)
		}
	}

	img, ready, err := t.d.advanceImage(ctx, t.image)
	if err != nil {
		return stepFailed(err)
	}
	if !ready {
		return stepYield
	}
	return t.d.publishTexture(t.index, t.image, img)
}

// resolveSource picks the image a texture decodes, applying texture extension overrides.
// It returns -1 when the texture has no usable image.
func (d *gltfTextureDecoderImpl) resolveSource(index int) (int, error) {
	doc := d.ic.doc
	tex := &doc.Textures[index]

	source := -1
	if tex.Source != nil {
		if *tex.Source < 0 || *tex.Source >= len(doc.Images) {
			return -1, newImportError(ErrReferenceOutOfRange, entityTexture, index, "image index %d out of range", *tex.Source)
		}
		source = *tex.Source
	}

	if p, ok := tex.extension(ExtTextureWebP).(*TextureWebP); ok {
		return p.Source, nil
	}
	if p, ok := tex.extension(ExtTextureBasisu).(*TextureBasisu); ok {
		if d.ic.caps.Transcoder != nil {
			return p.Source, nil
		}
		msg := "no texture transcoder configured, using the fallback image"
		if source < 0 {
			msg = "no texture transcoder configured and no fallback image, texture left empty"
		}
		d.ic.warn(newImportError(ErrMissingOptionalCapability, entityTexture, index, "%s", msg))
	}
	return source, nil
}

// advanceImage moves an image load forward by at most one step.
//
// Returns:
//   - *common.DecodedImage: the image once ready, nil when decoding failed
//   - bool: true when the image is ready (or failed recoverably)
//   - error: a fatal error
func (d *gltfTextureDecoderImpl) advanceImage(ctx context.Context, index int) (*common.DecodedImage, bool, error) {
	if img, ok := Lookup[*common.DecodedImage](d.ic.cache, KindImage, index); ok {
		return img, true, nil
	}

	load, ok := d.loads[index]
	if !ok {
		var err error
		if load, err = d.openImage(ctx, index); err != nil {
			return nil, false, err
		}
		d.loads[index] = load
	}

	if load.fetch != nil {
		if !load.fetch.Done() {
			return nil, false, nil
		}
		data, err := d.ic.finishDownload(load.fetch, entityImage, index)
		if err != nil {
			return nil, false, err
		}
		load.data, load.fetch = data, nil
	}

	if load.decode == nil {
		data, mime, transcoder := load.data, load.mime, d.ic.caps.Transcoder
		load.decode = d.ic.jobs.submit(ctx, fmt.Sprintf("decode image %d", index), func(ctx context.Context) (any, error) {
			return decodeImage(ctx, data, mime, transcoder)
		})
		load.data = nil
	}
	if !load.decode.Done() {
		return nil, false, nil
	}
	delete(d.loads, index)

	img, err := jobResult[*common.DecodedImage](load.decode)
	if err != nil {
		kind := ErrInvalidData
		if errors.Is(err, errNoTranscoder) {
			kind = ErrMissingOptionalCapability
		}
		d.ic.warn(&ImportError{Kind: kind, Entity: entityImage, Index: index, Err: errors.Wrap(err, "image decode failed")})
		img = nil
	}
	if err := d.ic.cache.Publish(KindImage, index, img); err != nil {
		return nil, false, wrapImportError(ErrInvalidData, entityImage, index, err, "publish image")
	}
	return img, true, nil
}

// openImage reads an image's bytes in source order: buffer view, data URI, archive, external reference.
func (d *gltfTextureDecoderImpl) openImage(ctx context.Context, index int) (*imageLoad, error) {
	img := &d.ic.doc.Images[index]
	load := &imageLoad{mime: img.MimeType}

	switch {
	case img.BufferView != nil:
		data, err := d.ic.parser.ReadBufferView(*img.BufferView)
		if err != nil {
			return nil, wrapImportError(ErrReferenceOutOfRange, entityImage, index, err, "image buffer view")
		}
		load.data = data
	case strings.HasPrefix(img.URI, "data:"):
		data, mime, err := gltfDecodeDataURI(img.URI)
		if err != nil {
			return nil, wrapImportError(ErrInvalidData, entityImage, index, err, "image data uri")
		}
		load.data = data
		load.mime = common.Coalesce(load.mime, mime)
	case img.URI != "":
		data, job, err := d.ic.openExternal(ctx, entityImage, index, img.URI)
		if err != nil {
			return nil, err
		}
		load.data, load.fetch = data, job
	default:
		return nil, newImportError(ErrInvalidData, entityImage, index, "image has neither bufferView nor uri")
	}
	return load, nil
}

func (d *gltfTextureDecoderImpl) publishTexture(index, imageIndex int, img *common.DecodedImage) StepResult {
	doc := d.ic.doc
	tex := &doc.Textures[index]

	var result *common.ImportedTexture
	if img != nil {
		sampler := common.DefaultSamplerStagingData()
		if tex.Sampler != nil {
			if *tex.Sampler < 0 || *tex.Sampler >= len(doc.Samplers) {
				return stepFailed(newImportError(ErrReferenceOutOfRange, entityTexture, index, "sampler index %d out of range", *tex.Sampler))
			}
			sampler = gltfSamplerToStagingData(&doc.Samplers[*tex.Sampler])
		}
		src := &doc.Images[imageIndex]
		base := common.Coalesce(tex.Name, src.Name, imageBaseName(src.URI))
		result = &common.ImportedTexture{
			Name:        d.ic.names.unique(nameCategoryTexture, base, fmt.Sprintf("texture_%d", index)),
			Index:       index,
			ImageIndex:  imageIndex,
			Image:       img,
			SamplerData: sampler,
		}
	}

	if err := d.ic.cache.Publish(KindTexture, index, result); err != nil {
		return stepFailed(wrapImportError(ErrInvalidData, entityTexture, index, err, "publish texture"))
	}
	if result != nil {
		d.ic.logger.Debug("texture decoded",
			zap.Int("texture", index),
			zap.String("name", result.Name),
			zap.Int("width", img.Width),
			zap.Int("height", img.Height),
			zap.String("mime", img.MimeType))
	}
	return stepDone
}

// imageBaseName returns the file name of an image URI without its extension; data URIs have none.
func imageBaseName(uri string) string {
	if uri == "" || strings.HasPrefix(uri, "data:") {
		return ""
	}
	base := path.Base(uri)
	return strings.TrimSuffix(base, path.Ext(base))
}

// decodeImage turns encoded image bytes into a DecodedImage. KTX2 containers go to the
// transcoder; everything else is decoded to RGBA8 with rows flipped to a bottom-left origin.
// It runs on a worker goroutine.
//
// Parameters:
//   - ctx: the import context
//   - data: the encoded image
//   - mimeHint: the MIME type declared by the document, may be empty
//   - transcoder: the optional transcoder
//
// Returns:
//   - *common.DecodedImage: the decoded image
//   - error: error if the data cannot be decoded
func decodeImage(ctx context.Context, data []byte, mimeHint string, transcoder TextureTranscoder) (*common.DecodedImage, error) {
	kind, _ := filetype.Match(data)
	if kind == ktx2Type {
		if transcoder == nil {
			return nil, errNoTranscoder
		}
		img, err := transcoder.TranscodeTexture(ctx, data)
		if err != nil {
			return nil, errors.Wrap(err, "transcode")
		}
		if img == nil {
			return nil, errors.New("transcoder returned no image")
		}
		img.MimeType = kind.MIME.Value
		return img, nil
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", common.Coalesce(kind.MIME.Value, mimeHint, "image"))
	}

	b := src.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), src, b.Min, draw.Src)
	flipRows(rgba.Pix, rgba.Stride, b.Dy())

	return &common.DecodedImage{
		Width:    b.Dx(),
		Height:   b.Dy(),
		Pixels:   rgba.Pix,
		Format:   common.PixelFormatRGBA8,
		MimeType: common.Coalesce(kind.MIME.Value, mimeHint, "image/"+format),
		FlippedY: true,
	}, nil
}

// flipRows reverses the row order of a pixel buffer in place.
func flipRows(pix []byte, stride, height int) {
	tmp := make([]byte, stride)
	for top, bottom := 0, height-1; top < bottom; top, bottom = top+1, bottom-1 {
		a := pix[top*stride : (top+1)*stride]
		b := pix[bottom*stride : (bottom+1)*stride]
		copy(tmp, a)
		copy(a, b)
		copy(b, tmp)
	}
}

// gltfSamplerToStagingData converts a glTF sampler definition into SamplerStagingData.
// Any unset fields fall back to the glTF defaults (linear filtering, repeat wrapping).
// Reference: https://registry.khronos.org/glTF/specs/2.0/glTF-2.0.html#reference-sampler
//
// Parameters:
//   - s: the glTF sampler to convert
//
// Returns:
//   - common.SamplerStagingData: the converted sampler staging data
func gltfSamplerToStagingData(s *gltfSampler) common.SamplerStagingData {
	result := common.DefaultSamplerStagingData()

	if s.MagFilter != nil {
		switch *s.MagFilter {
		case gltfFilterNearest:
			result.MagFilter = wgpu.FilterModeNearest
		case gltfFilterLinear:
			result.MagFilter = wgpu.FilterModeLinear
		}
	}

	if s.MinFilter != nil {
		switch *s.MinFilter {
		case gltfFilterNearest, gltfFilterNearestMipmapNearest, gltfFilterNearestMipmapLinear:
			result.MinFilter = wgpu.FilterModeNearest
		case gltfFilterLinear, gltfFilterLinearMipmapNearest, gltfFilterLinearMipmapLinear:
			result.MinFilter = wgpu.FilterModeLinear
		}
		switch *s.MinFilter {
		case gltfFilterNearestMipmapNearest, gltfFilterLinearMipmapNearest, gltfFilterNearest, gltfFilterLinear:
			result.MipmapFilter = wgpu.MipmapFilterModeNearest
		case gltfFilterNearestMipmapLinear, gltfFilterLinearMipmapLinear:
			result.MipmapFilter = wgpu.MipmapFilterModeLinear
		}
	}

	if s.WrapS != nil {
		result.AddressModeU = gltfWrapToAddressMode(*s.WrapS)
	}
	if s.WrapT != nil {
		result.AddressModeV = gltfWrapToAddressMode(*s.WrapT)
	}
	return result
}

// gltfWrapToAddressMode converts a glTF wrap mode constant to a wgpu AddressMode.
func gltfWrapToAddressMode(wrap int) wgpu.AddressMode {
	switch wrap {
	case gltfWrapClampToEdge:
		return wgpu.AddressModeClampToEdge
	case gltfWrapMirroredRepeat:
		return wgpu.AddressModeMirrorRepeat
	default:
		return wgpu.AddressModeRepeat
	}
}
