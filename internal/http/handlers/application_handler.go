package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/gigmarket-backend/internal/http/handlers/common"
	"github.com/ignatzorin/gigmarket-backend/internal/models"
	"github.com/ignatzorin/gigmarket-backend/internal/service"
)

// multipartMemory - сколько данных формы держать в памяти, остальное уходит во временные файлы.
const multipartMemory = 8 << 20

// ApplicationHandler обслуживает отклики на вакансии.
type ApplicationHandler struct {
	applications *service.ApplicationService
}

// NewApplicationHandler создаёт хэндлер откликов.
func NewApplicationHandler(applications *service.ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{applications: applications}
}

// Submit обрабатывает POST /job-applications (multipart/form-data).
func (h *ApplicationHandler) Submit(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}

	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
		common.RespondBadRequest(c, "ожидается multipart/form-data")
		return
	}
	form := c.Request.MultipartForm
	defer func() { _ = form.RemoveAll() }()

	var headers []*multipart.FileHeader
	headers = append(headers, form.File["attachments"]...)
	headers = append(headers, form.File["attachments[]"]...)
	if len(headers) > models.MaxApplicationAttachments {
		common.RespondBadRequest(c, fmt.Sprintf("можно приложить не более %d файлов", models.MaxApplicationAttachments))
		return
	}

	uploads := make([]service.AttachmentUpload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			common.RespondBadRequest(c, "не удалось прочитать файл "+fh.Filename)
			return
		}
		defer closeFile(f)
		uploads = append(uploads, service.AttachmentUpload{
			FileName: fh.Filename,
			Size:     fh.Size,
			Content:  f,
		})
	}

	app, err := h.applications.Submit(c.Request.Context(), actor, service.SubmitApplicationInput{
		PostID:            c.PostForm("postId"),
		FullName:          c.PostForm("fullName"),
		Email:             c.PostForm("email"),
		PhoneNumber:       optionalFormValue(c, "phoneNumber"),
		ProfessionalTitle: c.PostForm("professionalTitle"),
		CoverLetter:       c.PostForm("coverLetter"),
		PortfolioLink:     optionalFormValue(c, "portfolioLink"),
		Attachments:       uploads,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, app)
}

func closeFile(f multipart.File) { _ = f.Close() }

func optionalFormValue(c *gin.Context, key string) *string {
	v, ok := c.GetPostForm(key)
	if !ok || v == "" {
		return nil
	}
	return &v
}

// ChangeStatus обрабатывает PATCH /job-applications/:id/status.
func (h *ApplicationHandler) ChangeStatus(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.PathID(c)
	if !ok {
		return
	}

	var req service.ChangeStatusInput
	if !common.BindJSON(c, &req) {
		return
	}

	app, err := h.applications.ChangeStatus(c.Request.Context(), actor, id, req)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, app)
}

// QuickActions обрабатывает GET /job-applications/:id/actions.
func (h *ApplicationHandler) QuickActions(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.PathID(c)
	if !ok {
		return
	}

	actions, err := h.applications.QuickActions(c.Request.Context(), actor, id)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"actions": actions})
}

// Withdraw обрабатывает DELETE /job-applications/:id.
func (h *ApplicationHandler) Withdraw(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.PathID(c)
	if !ok {
		return
	}

	if err := h.applications.Withdraw(c.Request.Context(), actor, id); err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "отклик отозван"})
}

// Get обрабатывает GET /job-applications/:id.
func (h *ApplicationHandler) Get(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.PathID(c)
	if !ok {
		return
	}

	app, err := h.applications.Get(c.Request.Context(), actor, id)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, app)
}

// History обрабатывает GET /job-applications/:id/history.
func (h *ApplicationHandler) History(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.PathID(c)
	if !ok {
		return
	}

	history, err := h.applications.History(c.Request.Context(), actor, id)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, history)
}

// ListMine обрабатывает GET /job-applications/my.
func (h *ApplicationHandler) ListMine(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}

	apps, err := h.applications.ListMine(c.Request.Context(), actor)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, apps)
}

// ListForPost обрабатывает GET /posts/:id/applications.
func (h *ApplicationHandler) ListForPost(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	postID, ok := common.PathID(c)
	if !ok {
		return
	}

	apps, err := h.applications.ListForPost(c.Request.Context(), actor, postID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, apps)
}

// DownloadAttachment обрабатывает GET /job-applications/:id/attachments/:index.
func (h *ApplicationHandler) DownloadAttachment(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.PathID(c)
	if !ok {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		common.RespondBadRequest(c, "параметр index должен быть числом")
		return
	}

	rc, attachment, err := h.applications.OpenAttachment(c.Request.Context(), actor, id, index)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	defer rc.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", attachment.FileName))
	c.Header("Content-Type", attachment.FileType)
	if attachment.FileSize > 0 {
		c.Header("Content-Length", strconv.FormatInt(attachment.FileSize, 10))
	}
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, rc)
}
