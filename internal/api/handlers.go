package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"qrcode_dashboard/graph/model"
	"qrcode_dashboard/internal/assembler"
	"qrcode_dashboard/internal/decoder"
	"qrcode_dashboard/internal/qrcode"
	"qrcode_dashboard/internal/repository"
	"qrcode_dashboard/internal/service"
	"qrcode_dashboard/internal/session"

	"github.com/gorilla/mux"
	"github.com/graphql-go/graphql"
	"go.uber.org/zap"
)

const (
	// ограничение на размер загружаемого файла со сканом
	maxScanSize   = 1 << 20
	scanFormField = "file"
)

type Handler struct {
	members service.MemberService
	scans   service.ScanService
	schema  graphql.Schema
	logger  *zap.Logger
}

func NewHandler(members service.MemberService, scans service.ScanService, schema graphql.Schema, logger *zap.Logger) *Handler {
	return &Handler{
		members: members,
		scans:   scans,
		schema:  schema,
		logger:  logger,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

type graphqlRequest struct {
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables"`
	OperationName string                 `json:"operationName"`
}

// Health отвечает OK, пока процесс жив
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handler) GraphQL(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("GraphQL request received",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("user_agent", r.UserAgent()),
		zap.String("remote_addr", r.RemoteAddr))

	var req graphqlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid graphql request"})
		return
	}

	result := graphql.Do(graphql.Params{
		Schema:         h.schema,
		RequestString:  req.Query,
		VariableValues: req.Variables,
		OperationName:  req.OperationName,
		Context:        r.Context(),
	})
	h.writeJSON(w, http.StatusOK, result)
}

// MemberQRCode изображение основного QR-кода участника
func (h *Handler) MemberQRCode(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	image, err := h.members.MemberQRCode(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get member qr code", zap.Error(err), zap.String("member_id", id))
		h.writeError(w, err)
		return
	}
	h.writeImage(w, image)
}

func (h *Handler) CredentialQRCode(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	image, err := h.members.CredentialQRCode(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get credential qr code", zap.Error(err), zap.String("qr_id", id))
		h.writeError(w, err)
		return
	}
	h.writeImage(w, image)
}

// Scan принимает текст QR-кода в теле запроса или файл в поле "file"
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	raw, source, err := readScan(r)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	draft, err := h.scans.Scan(r.Context(), source, raw)
	if err != nil {
		h.logger.Warn("scan failed", zap.Error(err), zap.String("source", string(source)))
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, draft)
}

func (h *Handler) Regenerate(w http.ResponseWriter, r *http.Request) {
	raw, _, err := readScan(r)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	image, err := h.scans.RegenerateFromScan(r.Context(), raw)
	if err != nil {
		h.logger.Warn("regenerate failed", zap.Error(err))
		h.writeError(w, err)
		return
	}
	h.writeImage(w, image)
}

func readScan(r *http.Request) (string, service.Source, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxScanSize); err != nil {
			return "", "", errors.New("invalid multipart form")
		}
		file, _, err := r.FormFile(scanFormField)
		if err != nil {
			return "", "", errors.New("missing file field")
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, maxScanSize))
		if err != nil {
			return "", "", errors.New("failed to read file")
		}
		return string(data), service.SourceFile, nil
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxScanSize))
	if err != nil {
		return "", "", errors.New("failed to read body")
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return "", "", errors.New("empty scan")
	}
	return string(data), service.SourceCamera, nil
}

func (h *Handler) writeImage(w http.ResponseWriter, image *model.QRImage) {
	w.Header().Set("Content-Type", image.ContentType)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(image.Data)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	h.writeJSON(w, statusFor(err), errorResponse{Error: service.UserMessage(err)})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

func statusFor(err error) int {
	var (
		decodeErr     *decoder.DecodeError
		validationErr *assembler.ValidationError
		lookupErr     *qrcode.LookupError
		imageErr      *service.ImageError
	)

	switch {
	case errors.As(err, &decodeErr), errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrGuestsHidden):
		return http.StatusForbidden
	case errors.Is(err, session.ErrSessionClosed):
		return http.StatusConflict
	case errors.As(err, &imageErr):
		return http.StatusBadGateway
	case errors.As(err, &lookupErr):
		if lookupErr.Kind == qrcode.LookupRejected {
			return http.StatusUnprocessableEntity
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
