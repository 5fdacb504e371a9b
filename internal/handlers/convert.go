package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"anim-converter/internal/converter"
	"anim-converter/internal/encoder"
	"anim-converter/internal/frames"
	"anim-converter/internal/logging"
	"anim-converter/internal/metrics"
	"anim-converter/internal/middleware"
	"anim-converter/internal/streaming"
	"anim-converter/internal/workspace"
)

const (
	videoField  = "video"
	framesField = "frames"

	// defaultFramesFPS applies to frame sequences, which are usually
	// hand-drawn at a lower rate than recorded video.
	defaultFramesFPS = 10

	maxFieldSize = 1 << 10
)

var (
	errUploadTooLarge = errors.New("upload exceeds size limit")
	errTooManyFiles   = errors.New("too many files")
)

// ConvertVideo converts a single uploaded video.
func (h *Handlers) ConvertVideo(w http.ResponseWriter, r *http.Request) {
	h.handleConvert(w, r, videoField, h.defaultFPS)
}

// ConvertFrames converts an uploaded image sequence.
func (h *Handlers) ConvertFrames(w http.ResponseWriter, r *http.Request) {
	h.handleConvert(w, r, framesField, defaultFramesFPS)
}

func (h *Handlers) handleConvert(w http.ResponseWriter, r *http.Request, field string, defaultFPS int) {
	rs := h.workspace.NewRequest()
	log := logging.Request(rs.ShortID())
	w.Header().Set(middleware.RequestIDHeader, rs.ShortID())
	defer func() {
		if failed := rs.ReleaseAll(); failed > 0 {
			log.Warn("%d temporary paths could not be removed", failed)
		}
	}()

	maxFiles := 1
	if field == framesField {
		maxFiles = h.maxFrames
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize*int64(maxFiles)+1<<20)

	params, uploads, err := h.receiveUploads(r, rs, field, maxFiles)
	if err != nil {
		var maxBytes *http.MaxBytesError
		switch {
		case errors.Is(err, errUploadTooLarge), errors.As(err, &maxBytes):
			writeJSONError(w, err.Error(), string(converter.StageInput), http.StatusRequestEntityTooLarge)
		case errors.Is(err, errTooManyFiles):
			writeJSONError(w, err.Error(), string(converter.StageInput), http.StatusBadRequest)
		default:
			log.Warn("Failed to receive upload: %v", err)
			writeJSONError(w, "failed to read upload", string(converter.StageInput), http.StatusBadRequest)
		}
		return
	}

	req, err := h.buildRequest(params, defaultFPS)
	if err != nil {
		writeJSONError(w, err.Error(), string(converter.StageInput), http.StatusBadRequest)
		return
	}

	if field == videoField {
		if len(uploads) == 1 {
			req.Video = uploads[0].Path
		}
	} else {
		req.Frames = uploads
		if req.Frames == nil {
			req.Frames = []frames.Upload{}
		}
	}

	out := h.converter.Convert(r.Context(), req, rs)
	if !out.Success {
		writeJSONError(w, out.Message, string(out.Stage), statusForStage(out.Stage))
		return
	}

	if out.TransparencyDropped {
		w.Header().Set("X-Transparency-Dropped", "true")
	}
	if len(out.Warnings) > 0 {
		w.Header().Set("X-Conversion-Warnings", strconv.Itoa(len(out.Warnings)))
	}

	if _, err := h.deliver(r.Context(), w, streaming.Artifact{
		Path:        out.ArtifactPath,
		ContentType: out.Format.ContentType(),
		Filename:    "animation" + out.Format.Ext(),
	}, h.stream); err != nil {
		metrics.DeliveryFailuresTotal.Inc()
		log.Warn("Failed to deliver artifact: %v", err)
		if errors.Is(err, streaming.ErrArtifactUnavailable) {
			writeJSONError(w, "artifact could not be read", string(converter.StageVerify), http.StatusInternalServerError)
		}
	}
}

// receiveUploads streams the multipart body into the request's scratch
// namespace. Plain form fields are merged over the query string.
func (h *Handlers) receiveUploads(r *http.Request, rs *workspace.ResourceSet, field string, maxFiles int) (url.Values, []frames.Upload, error) {
	params := r.URL.Query()

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, nil, fmt.Errorf("expected multipart/form-data: %w", err)
	}

	var uploads []frames.Upload
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}

		if part.FileName() == "" {
			value, err := io.ReadAll(io.LimitReader(part, maxFieldSize))
			if err != nil {
				return nil, nil, err
			}
			params.Set(part.FormName(), strings.TrimSpace(string(value)))
			continue
		}

		if part.FormName() != field {
			logging.Debug("Ignoring file in unexpected field %q", part.FormName())
			continue
		}

		if len(uploads) >= maxFiles {
			return nil, nil, fmt.Errorf("%w: at most %d allowed in %q", errTooManyFiles, maxFiles, field)
		}

		path := rs.Path(fmt.Sprintf("upload-%d-%s", len(uploads)+1, part.FileName()))
		rs.Register(path)
		if err := h.saveUpload(part, path); err != nil {
			return nil, nil, err
		}
		uploads = append(uploads, frames.Upload{Name: part.FileName(), Path: path})
	}

	return params, uploads, nil
}

func (h *Handlers) saveUpload(part *multipart.Part, path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create upload file: %w", err)
	}

	n, copyErr := io.Copy(f, io.LimitReader(part, h.maxUploadSize+1))
	closeErr := f.Close()
	metrics.UploadBytesTotal.Add(float64(n))

	switch {
	case copyErr != nil:
		return copyErr
	case n > h.maxUploadSize:
		return fmt.Errorf("%w: %s is larger than %d bytes", errUploadTooLarge, part.FileName(), h.maxUploadSize)
	case closeErr != nil:
		return fmt.Errorf("failed to write upload file: %w", closeErr)
	}
	return nil
}

// buildRequest parses conversion options. Range checks are left to
// Request.Validate so both entry points report them the same way.
func (h *Handlers) buildRequest(params url.Values, defaultFPS int) (converter.Request, error) {
	req := converter.Request{
		FPS:    defaultFPS,
		Size:   h.outputSize,
		Format: encoder.FormatGIF,
	}

	if v := params.Get("fps"); v != "" {
		fps, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("invalid fps %q", v)
		}
		req.FPS = fps
	}

	if v := params.Get("size"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("invalid size %q", v)
		}
		req.Size = size
	}

	if v := params.Get("transparent"); v != "" {
		transparent, err := strconv.ParseBool(v)
		if err != nil {
			return req, fmt.Errorf("invalid transparent flag %q", v)
		}
		req.Transparent = transparent
	}

	if v := params.Get("format"); v != "" {
		format, err := encoder.ParseFormat(v)
		if err != nil {
			return req, err
		}
		req.Format = format
	}

	req.Mode = converter.ModeFor(req.Format)
	return req, nil
}

func statusForStage(stage converter.FailureStage) int {
	switch stage {
	case converter.StageInput:
		return http.StatusBadRequest
	case converter.StageCapacity:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
