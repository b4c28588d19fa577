package rest

import (
	"errors"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nexuscrm/salescrm/internal/application/services"
	"github.com/nexuscrm/salescrm/internal/domain/models"
	"github.com/nexuscrm/salescrm/internal/infrastructure/storage"
	"github.com/nexuscrm/salescrm/pkg/constants"
	apperrors "github.com/nexuscrm/salescrm/pkg/errors"
	"github.com/nexuscrm/salescrm/pkg/utils"
)

// multipartOverhead is the allowance for form fields and part headers on top
// of the file size limit.
const multipartOverhead = 1 << 20

type DocumentHandler struct {
	documents *services.DocumentService
	maxUpload int64
}

func NewDocumentHandler(documents *services.DocumentService, maxUpload int64) *DocumentHandler {
	return &DocumentHandler{documents: documents, maxUpload: maxUpload}
}

// List handles GET /api/documents
func (h *DocumentHandler) List(c *gin.Context) {
	user := GetUserFromContext(c)
	handleList(c, "documents", func(opts models.ListOptions) (interface{}, error) {
		return h.documents.List(c.Request.Context(), user, opts)
	})
}

// Upload handles multipart POST /api/documents with a "file" part and
// optional contact_id, company_id and deal_id fields.
func (h *DocumentHandler) Upload(c *gin.Context) {
	user := GetUserFromContext(c)
	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+multipartOverhead)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			RespondAppError(c, apperrors.NewValidationError("file", "file is too large"))
			return
		}
		RespondAppError(c, apperrors.NewValidationError("file", "No file uploaded"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		RespondAppError(c, apperrors.NewValidationError("file", err.Error()))
		return
	}
	defer func(f multipart.File) {
		if err := f.Close(); err != nil {
			zap.L().Debug("close upload", zap.Error(err))
		}
	}(f)

	links := models.DocumentLinks{
		ContactID: utils.StringPtr(c.PostForm(constants.FieldContactID)),
		CompanyID: utils.StringPtr(c.PostForm(constants.FieldCompanyID)),
		DealID:    utils.StringPtr(c.PostForm(constants.FieldDealID)),
	}
	up := services.Upload{
		Name:        fh.Filename,
		ContentType: fh.Header.Get(constants.HeaderContentType),
		Size:        fh.Size,
		Body:        f,
	}

	doc, err := h.documents.Upload(c.Request.Context(), user, up, links)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"document": doc})
}

// Download handles GET /api/documents/:id/download. The response carries a
// time-limited URL; ?redirect=1 redirects to it instead.
func (h *DocumentHandler) Download(c *gin.Context) {
	user := GetUserFromContext(c)
	link, err := h.documents.DownloadURL(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		RespondAppError(c, err)
		return
	}
	if c.Query("redirect") != "" {
		c.Redirect(http.StatusFound, link.URL)
		return
	}
	c.JSON(http.StatusOK, gin.H{"download": link})
}

// Delete handles DELETE /api/documents/:id
func (h *DocumentHandler) Delete(c *gin.Context) {
	user := GetUserFromContext(c)
	HandleDeleteEnvelope(c, "Document deleted", func() error {
		return h.documents.Delete(c.Request.Context(), user, c.Param("id"))
	})
}

// FileHandler serves blobs of the local store. The signed token in the path
// is the only credential.
type FileHandler struct {
	store *storage.LocalStore
}

func NewFileHandler(store *storage.LocalStore) *FileHandler {
	return &FileHandler{store: store}
}

// Serve handles GET /api/files/:token
func (h *FileHandler) Serve(c *gin.Context) {
	key, filename, err := h.store.ResolveToken(c.Param("token"))
	if err != nil {
		RespondAppError(c, apperrors.NewUnauthorizedError("download link is invalid or expired"))
		return
	}
	rc, err := h.store.Get(c.Request.Context(), key)
	if errors.Is(err, storage.ErrBlobNotFound) {
		RespondAppError(c, apperrors.NewNotFoundError("Document", filename))
		return
	}
	if err != nil {
		RespondAppError(c, err)
		return
	}
	defer rc.Close()

	c.Header("Content-Disposition", storage.ContentDisposition(filename))
	c.Header("Cache-Control", "private, no-store")
	c.DataFromReader(http.StatusOK, -1, contentTypeOf(filename), rc, nil)
}

func contentTypeOf(filename string) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); t != "" {
		return t
	}
	return "application/octet-stream"
}
