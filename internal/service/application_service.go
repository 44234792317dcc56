package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/gigmarket-backend/internal/domain/valueobject"
	"github.com/ignatzorin/gigmarket-backend/internal/events"
	"github.com/ignatzorin/gigmarket-backend/internal/logger"
	"github.com/ignatzorin/gigmarket-backend/internal/models"
	"github.com/ignatzorin/gigmarket-backend/internal/pkg/apperror"
	"github.com/ignatzorin/gigmarket-backend/internal/repository"
	"github.com/ignatzorin/gigmarket-backend/internal/storage"
	"github.com/ignatzorin/gigmarket-backend/internal/validation"
)

// ApplicationRepository описывает хранилище откликов и их истории.
type ApplicationRepository interface {
	Create(ctx context.Context, app *models.JobApplication, initial models.StatusHistoryEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.JobApplication, error)
	HasActive(ctx context.Context, postID, applicantID uuid.UUID) (bool, error)
	ListByApplicant(ctx context.Context, applicantID uuid.UUID) ([]models.JobApplication, error)
	ListByPost(ctx context.Context, postID uuid.UUID) ([]models.JobApplication, error)
	ListHistory(ctx context.Context, applicationID uuid.UUID) ([]models.StatusHistoryEntry, error)
	LastChangedAt(ctx context.Context, applicationID uuid.UUID) (time.Time, error)
	ApplyStatusChange(ctx context.Context, id uuid.UUID, change models.StatusChange) (*models.JobApplication, error)
	Withdraw(ctx context.Context, id uuid.UUID, at time.Time) error
}

// PostReader даёт доступ к вакансиям.
type PostReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.JobPost, error)
}

// AttachmentUpload - файл из multipart формы.
type AttachmentUpload struct {
	FileName string
	Size     int64
	Content  io.Reader
}

// SubmitApplicationInput - данные отклика.
type SubmitApplicationInput struct {
	PostID            string
	FullName          string
	Email             string
	PhoneNumber       *string
	ProfessionalTitle string
	CoverLetter       string
	PortfolioLink     *string
	Attachments       []AttachmentUpload
}

// ChangeStatusInput - запрос на смену статуса отклика.
type ChangeStatusInput struct {
	Status           string                   `json:"status"`
	Feedback         *string                  `json:"feedback"`
	Reason           *string                  `json:"reason"`
	InterviewDetails *models.InterviewDetails `json:"interviewDetails"`
}

var (
	errApplicationStateChanged = apperror.New(apperror.ErrCodeConflict, "статус отклика изменился, обновите данные")
	errWithdrawNotPending      = apperror.New(apperror.ErrCodeConflict, "отозвать можно только отклик в статусе Pending")
	errAttachmentNotFound      = apperror.New(apperror.ErrCodeNotFound, "вложение не найдено")
	errDuplicateApplication    = apperror.New(apperror.ErrCodeConflict, "вы уже откликнулись на эту вакансию")
)

// ApplicationService управляет жизненным циклом откликов на вакансии.
type ApplicationService struct {
	repo    ApplicationRepository
	posts   PostReader
	files   storage.FileStorage
	emitter emitter
	now     func() time.Time
}

// NewApplicationService создаёт сервис откликов. notifier и publisher могут быть nil.
func NewApplicationService(
	repo ApplicationRepository,
	posts PostReader,
	files storage.FileStorage,
	notifier Notifier,
	publisher events.Publisher,
) *ApplicationService {
	return &ApplicationService{
		repo:    repo,
		posts:   posts,
		files:   files,
		emitter: emitter{notifier: notifier, publisher: publisher, log: logger.WithComponent("applications")},
		now:     time.Now,
	}
}

// Submit создаёт отклик в статусе Pending. Кандидат не может откликнуться на свою вакансию.
func (s *ApplicationService) Submit(ctx context.Context, actor Actor, in SubmitApplicationInput) (*models.JobApplication, error) {
	if actor.IsAdmin() {
		return nil, apperror.New(apperror.ErrCodeForbidden, "администратор не может откликаться на вакансии")
	}

	app, postID, err := buildApplication(in)
	if err != nil {
		return nil, err
	}

	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			return nil, apperror.ErrPostNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось загрузить вакансию")
	}
	if post.ClientID == actor.UserID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "нельзя откликнуться на собственную вакансию")
	}
	if !post.IsOpen() {
		return nil, apperror.Validation("вакансия не принимает отклики")
	}

	exists, err := s.repo.HasActive(ctx, post.ID, actor.UserID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось проверить отклики")
	}
	if exists {
		return nil, errDuplicateApplication
	}

	app.PostID = post.ID
	app.ApplicantID = actor.UserID
	app.ClientID = post.ClientID
	app.Status = valueobject.ApplicationStatusPending

	attachments, err := s.saveAttachments(ctx, actor.UserID, in.Attachments)
	if err != nil {
		return nil, err
	}
	app.Attachments = attachments

	initial := models.StatusHistoryEntry{
		Status:    valueobject.ApplicationStatusPending,
		ChangedAt: valueobject.NextChangedAt(time.Time{}, s.now()),
		ChangedBy: &actor.UserID,
	}
	if err := s.repo.Create(ctx, app, initial); err != nil {
		s.removeFiles(ctx, attachments)
		if errors.Is(err, repository.ErrDuplicateApplication) {
			return nil, errDuplicateApplication
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось сохранить отклик")
	}

	s.emitter.emit(ctx, events.ApplicationSubmitted, applicationEventData(app), app.ClientID)
	return app, nil
}

// buildApplication проверяет поля формы и собирает отклик.
func buildApplication(in SubmitApplicationInput) (*models.JobApplication, uuid.UUID, error) {
	if err := validation.ValidateRequired("postId", in.PostID); err != nil {
		return nil, uuid.Nil, apperror.Validation("%s", err.Error())
	}
	postID, err := uuid.Parse(strings.TrimSpace(in.PostID))
	if err != nil {
		return nil, uuid.Nil, apperror.Validation("поле postId должно быть UUID")
	}

	fullName := strings.TrimSpace(in.FullName)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	title := strings.TrimSpace(in.ProfessionalTitle)

	checks := []func() error{
		func() error { return validation.ValidateRequired("fullName", fullName) },
		func() error { return validation.ValidateLength("fullName", fullName, 0, validation.MaxFullNameLength) },
		func() error { return validation.ValidateEmail(email) },
		func() error { return validation.ValidatePhone(in.PhoneNumber) },
		func() error { return validation.ValidateRequired("professionalTitle", title) },
		func() error {
			return validation.ValidateLength("professionalTitle", title, 0, validation.MaxProfessionalTitleLen)
		},
		func() error { return validation.ValidateCoverLetter(in.CoverLetter) },
		func() error { return validation.ValidateExternalLink("portfolioLink", in.PortfolioLink) },
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return nil, uuid.Nil, apperror.Validation("%s", err.Error())
		}
	}
	if len(in.Attachments) > models.MaxApplicationAttachments {
		return nil, uuid.Nil, apperror.Validation("можно приложить не более %d файлов", models.MaxApplicationAttachments)
	}

	return &models.JobApplication{
		FullName:          fullName,
		Email:             email,
		PhoneNumber:       trimmedOrNil(in.PhoneNumber),
		ProfessionalTitle: title,
		CoverLetter:       strings.TrimSpace(in.CoverLetter),
		PortfolioLink:     trimmedOrNil(in.PortfolioLink),
	}, postID, nil
}

// saveAttachments определяет тип каждого файла по содержимому и сохраняет его.
// При ошибке уже сохранённые файлы удаляются.
func (s *ApplicationService) saveAttachments(ctx context.Context, ownerID uuid.UUID, uploads []AttachmentUpload) (models.Attachments, error) {
	saved := make(models.Attachments, 0, len(uploads))

	for _, up := range uploads {
		head := make([]byte, storage.SniffLen)
		n, err := io.ReadFull(up.Content, head)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
			s.removeFiles(ctx, saved)
			return nil, apperror.Wrap(err, apperror.ErrCodeBadRequest, "не удалось прочитать файл")
		}
		head = head[:n]

		kind, err := storage.DetectAttachmentType(head)
		if err != nil {
			s.removeFiles(ctx, saved)
			return nil, apperror.Validation("файл %s: %s", up.FileName, err.Error())
		}

		key := storage.AttachmentKey(ownerID, up.FileName, kind.Extension)
		size, err := s.files.Save(ctx, key, storage.Object{
			Body:        io.MultiReader(bytes.NewReader(head), up.Content),
			Size:        up.Size,
			ContentType: kind.MIME,
		})
		if err != nil {
			s.removeFiles(ctx, saved)
			if errors.Is(err, storage.ErrTooLarge) {
				return nil, apperror.Validation("файл %s превышает допустимый размер", up.FileName)
			}
			return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось сохранить файл")
		}

		saved = append(saved, models.Attachment{
			FileName: storage.SanitizeFilename(up.FileName),
			FilePath: key,
			FileType: kind.MIME,
			FileSize: size,
		})
	}

	return saved, nil
}

func (s *ApplicationService) removeFiles(ctx context.Context, attachments models.Attachments) {
	for _, a := range attachments {
		if err := s.files.Delete(context.WithoutCancel(ctx), a.FilePath); err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.emitter.log.WithFields(logrus.Fields{
				"path":  a.FilePath,
				"error": err.Error(),
			}).Warn("application service: не удалось удалить вложение")
		}
	}
}

// ChangeStatus меняет статус отклика и добавляет запись в историю.
// Менять статус может автор вакансии или администратор; администратор не ограничен таблицей переходов.
func (s *ApplicationService) ChangeStatus(ctx context.Context, actor Actor, id uuid.UUID, in ChangeStatusInput) (*models.JobApplication, error) {
	to, err := valueobject.NewApplicationStatus(strings.TrimSpace(in.Status))
	if err != nil {
		return nil, err
	}

	app, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if app.ClientID != actor.UserID && !actor.IsAdmin() {
		return nil, apperror.New(apperror.ErrCodeForbidden, "менять статус отклика может только автор вакансии")
	}
	if app.Status == to {
		return nil, apperror.Validation("отклик уже в статусе %q", to)
	}
	if !actor.IsAdmin() && !app.Status.CanTransitionTo(to) {
		return nil, apperror.Validation("недопустимый переход статуса отклика: %q → %q", app.Status, to)
	}

	var interview *models.InterviewDetails
	if to == valueobject.ApplicationStatusInterviewScheduled {
		if interview, err = validateInterview(in.InterviewDetails); err != nil {
			return nil, err
		}
	}

	feedback := trimmedOrNil(in.Feedback)
	if feedback != nil {
		if err := validation.ValidateLength("feedback", *feedback, 0, validation.MaxFeedbackLength); err != nil {
			return nil, apperror.Validation("%s", err.Error())
		}
	}
	reason := trimmedOrNil(in.Reason)
	if reason != nil {
		if err := validation.ValidateLength("reason", *reason, 0, validation.MaxReasonLength); err != nil {
			return nil, apperror.Validation("%s", err.Error())
		}
	}

	last, err := s.repo.LastChangedAt(ctx, id)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось загрузить историю отклика")
	}

	updated, err := s.repo.ApplyStatusChange(ctx, id, models.StatusChange{
		From: app.Status,
		Entry: models.StatusHistoryEntry{
			Status:    to,
			ChangedAt: valueobject.NextChangedAt(last, s.now()),
			ChangedBy: &actor.UserID,
			Reason:    reason,
			Feedback:  feedback,
		},
		InterviewDetails: interview,
		Feedback:         feedback,
	})
	if err != nil {
		return nil, mapApplicationErr(err, "не удалось изменить статус отклика")
	}

	s.emitter.log.WithFields(logrus.Fields{
		"application_id": id,
		"from":           app.Status,
		"to":             to,
		"actor":          actor.UserID,
	}).Info("application service: статус отклика изменён")

	s.emitter.emit(ctx, events.ApplicationStatusChanged, applicationEventData(updated), updated.ApplicantID)
	return updated, nil
}

// validateInterview проверяет детали собеседования. Сообщение называет первое незаполненное поле.
func validateInterview(details *models.InterviewDetails) (*models.InterviewDetails, error) {
	if details == nil {
		details = &models.InterviewDetails{}
	}
	d := *details
	d.ScheduledDate = strings.TrimSpace(d.ScheduledDate)
	d.ScheduledTime = strings.TrimSpace(d.ScheduledTime)
	d.Location = strings.TrimSpace(d.Location)
	d.MeetingLink = strings.TrimSpace(d.MeetingLink)
	d.Notes = strings.TrimSpace(d.Notes)

	if _, err := validation.ParseDate("scheduledDate", d.ScheduledDate); err != nil {
		return nil, apperror.Validation("%s", err.Error())
	}
	if err := validation.ValidateClockTime("scheduledTime", d.ScheduledTime); err != nil {
		return nil, apperror.Validation("%s", err.Error())
	}
	if err := validation.ValidateRequired("location", d.Location); err != nil {
		return nil, apperror.Validation("%s", err.Error())
	}
	if d.IsOnline {
		if err := validation.ValidateRequired("meetingLink", d.MeetingLink); err != nil {
			return nil, apperror.Validation("%s", err.Error())
		}
	}
	if d.MeetingLink != "" {
		if err := validation.ValidateURL("meetingLink", d.MeetingLink); err != nil {
			return nil, apperror.Validation("%s", err.Error())
		}
	}
	return &d, nil
}

// QuickActions возвращает статусы, в которые можно перевести отклик из текущего.
func (s *ApplicationService) QuickActions(ctx context.Context, actor Actor, id uuid.UUID) ([]valueobject.ApplicationStatus, error) {
	app, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if app.ClientID != actor.UserID && !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	return app.Status.AllowedNext(), nil
}

// Withdraw отзывает отклик. Доступно автору отклика, пока отклик в статусе Pending.
func (s *ApplicationService) Withdraw(ctx context.Context, actor Actor, id uuid.UUID) error {
	app, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if app.ApplicantID != actor.UserID {
		return apperror.New(apperror.ErrCodeForbidden, "отозвать отклик может только его автор")
	}
	if app.Status != valueobject.ApplicationStatusPending {
		return errWithdrawNotPending
	}

	if err := s.repo.Withdraw(ctx, id, s.now().UTC()); err != nil {
		if errors.Is(err, repository.ErrApplicationStateChanged) {
			return errWithdrawNotPending
		}
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось отозвать отклик")
	}

	s.emitter.emit(ctx, events.ApplicationWithdrawn, applicationEventData(app), app.ClientID)
	return nil
}

// Get возвращает отклик вместе с историей статусов.
func (s *ApplicationService) Get(ctx context.Context, actor Actor, id uuid.UUID) (*models.JobApplication, error) {
	app, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	history, err := s.repo.ListHistory(ctx, id)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось загрузить историю отклика")
	}
	app.StatusHistory = history
	return app, nil
}

// History возвращает историю статусов отклика в хронологическом порядке.
func (s *ApplicationService) History(ctx context.Context, actor Actor, id uuid.UUID) ([]models.StatusHistoryEntry, error) {
	if _, err := s.loadVisible(ctx, actor, id); err != nil {
		return nil, err
	}

	history, err := s.repo.ListHistory(ctx, id)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось загрузить историю отклика")
	}
	return history, nil
}

// ListMine возвращает отклики текущего пользователя.
func (s *ApplicationService) ListMine(ctx context.Context, actor Actor) ([]models.JobApplication, error) {
	apps, err := s.repo.ListByApplicant(ctx, actor.UserID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось загрузить отклики")
	}
	return apps, nil
}

// ListForPost возвращает отклики на вакансию её автору или администратору.
func (s *ApplicationService) ListForPost(ctx context.Context, actor Actor, postID uuid.UUID) ([]models.JobApplication, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			return nil, apperror.ErrPostNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось загрузить вакансию")
	}
	if post.ClientID != actor.UserID && !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}

	apps, err := s.repo.ListByPost(ctx, postID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось загрузить отклики")
	}
	return apps, nil
}

// OpenAttachment открывает вложение отклика. Вызывающий закрывает reader.
func (s *ApplicationService) OpenAttachment(ctx context.Context, actor Actor, id uuid.UUID, index int) (io.ReadCloser, *models.Attachment, error) {
	app, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, nil, err
	}
	if index < 0 || index >= len(app.Attachments) {
		return nil, nil, errAttachmentNotFound
	}

	attachment := app.Attachments[index]
	rc, err := s.files.Open(ctx, attachment.FilePath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, errAttachmentNotFound
		}
		return nil, nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось открыть вложение")
	}
	return rc, &attachment, nil
}

func (s *ApplicationService) load(ctx context.Context, id uuid.UUID) (*models.JobApplication, error) {
	app, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapApplicationErr(err, "не удалось загрузить отклик")
	}
	return app, nil
}

// loadVisible загружает отклик, доступный кандидату, автору вакансии или администратору.
func (s *ApplicationService) loadVisible(ctx context.Context, actor Actor, id uuid.UUID) (*models.JobApplication, error) {
	app, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !app.CanView(actor.UserID) && !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	return app, nil
}

func mapApplicationErr(err error, message string) error {
	switch {
	case errors.Is(err, repository.ErrApplicationNotFound):
		return apperror.ErrApplicationNotFound
	case errors.Is(err, repository.ErrApplicationStateChanged):
		return errApplicationStateChanged
	default:
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, message)
	}
}

func applicationEventData(app *models.JobApplication) map[string]any {
	data := map[string]any{
		"applicationId": app.ID,
		"postId":        app.PostID,
		"status":        app.Status,
	}
	if app.ClientFeedback != nil {
		data["feedback"] = *app.ClientFeedback
	}
	if app.InterviewDetails != nil {
		data["interviewDetails"] = app.InterviewDetails
	}
	return data
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
