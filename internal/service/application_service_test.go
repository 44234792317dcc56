package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/gigmarket-backend/internal/domain/valueobject"
	"github.com/ignatzorin/gigmarket-backend/internal/events"
	"github.com/ignatzorin/gigmarket-backend/internal/models"
	"github.com/ignatzorin/gigmarket-backend/internal/pkg/apperror"
	"github.com/ignatzorin/gigmarket-backend/internal/repository"
	"github.com/ignatzorin/gigmarket-backend/internal/storage"
)

type mockApplicationRepository struct {
	mock.Mock
}

func (m *mockApplicationRepository) Create(ctx context.Context, app *models.JobApplication, initial models.StatusHistoryEntry) error {
	args := m.Called(ctx, app, initial)
	return args.Error(0)
}

func (m *mockApplicationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.JobApplication, error) {
	args := m.Called(ctx, id)
	if app, ok := args.Get(0).(*models.JobApplication); ok {
		return app, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockApplicationRepository) HasActive(ctx context.Context, postID, applicantID uuid.UUID) (bool, error) {
	args := m.Called(ctx, postID, applicantID)
	return args.Bool(0), args.Error(1)
}

func (m *mockApplicationRepository) ListByApplicant(ctx context.Context, applicantID uuid.UUID) ([]models.JobApplication, error) {
	args := m.Called(ctx, applicantID)
	return args.Get(0).([]models.JobApplication), args.Error(1)
}

func (m *mockApplicationRepository) ListByPost(ctx context.Context, postID uuid.UUID) ([]models.JobApplication, error) {
	args := m.Called(ctx, postID)
	return args.Get(0).([]models.JobApplication), args.Error(1)
}

func (m *mockApplicationRepository) ListHistory(ctx context.Context, applicationID uuid.UUID) ([]models.StatusHistoryEntry, error) {
	args := m.Called(ctx, applicationID)
	return args.Get(0).([]models.StatusHistoryEntry), args.Error(1)
}

func (m *mockApplicationRepository) LastChangedAt(ctx context.Context, applicationID uuid.UUID) (time.Time, error) {
	args := m.Called(ctx, applicationID)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *mockApplicationRepository) ApplyStatusChange(ctx context.Context, id uuid.UUID, change models.StatusChange) (*models.JobApplication, error) {
	args := m.Called(ctx, id, change)
	if app, ok := args.Get(0).(*models.JobApplication); ok {
		return app, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockApplicationRepository) Withdraw(ctx context.Context, id uuid.UUID, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

type mockPostReader struct {
	mock.Mock
}

func (m *mockPostReader) GetByID(ctx context.Context, id uuid.UUID) (*models.JobPost, error) {
	args := m.Called(ctx, id)
	if post, ok := args.Get(0).(*models.JobPost); ok {
		return post, args.Error(1)
	}
	return nil, args.Error(1)
}

type applicationFixture struct {
	service  *ApplicationService
	repo     *mockApplicationRepository
	posts    *mockPostReader
	files    *storage.LocalStorage
	root     string
	notifier *recordingNotifier
}

func newApplicationFixture(t *testing.T) *applicationFixture {
	t.Helper()
	root := t.TempDir()
	files, err := storage.NewLocalStorage(root, 1)
	require.NoError(t, err)

	f := &applicationFixture{
		repo:     &mockApplicationRepository{},
		posts:    &mockPostReader{},
		files:    files,
		root:     root,
		notifier: &recordingNotifier{},
	}
	f.service = NewApplicationService(f.repo, f.posts, files, f.notifier, &recordingPublisher{})
	return f
}

func approvedPost(clientID uuid.UUID) *models.JobPost {
	return &models.JobPost{ID: uuid.New(), ClientID: clientID, Title: "Backend developer", Status: valueobject.PostStatusApproved}
}

func validSubmission(postID uuid.UUID) SubmitApplicationInput {
	return SubmitApplicationInput{
		PostID:            postID.String(),
		FullName:          "Ivan Petrov",
		Email:             "Ivan@Example.com",
		ProfessionalTitle: "Go developer",
		CoverLetter:       strings.Repeat("a", 50),
	}
}

func TestApplicationService_Submit(t *testing.T) {
	f := newApplicationFixture(t)
	applicant := freelancerActor()
	post := approvedPost(uuid.New())

	f.posts.On("GetByID", mock.Anything, post.ID).Return(post, nil)
	f.repo.On("HasActive", mock.Anything, post.ID, applicant.UserID).Return(false, nil)
	f.repo.On("Create", mock.Anything, mock.AnythingOfType("*models.JobApplication"), mock.MatchedBy(func(e models.StatusHistoryEntry) bool {
		return e.Status == valueobject.ApplicationStatusPending && !e.ChangedAt.IsZero()
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*models.JobApplication).ID = uuid.New()
	}).Return(nil)

	in := validSubmission(post.ID)
	in.Attachments = []AttachmentUpload{{
		FileName: "My CV.pdf",
		Size:     16,
		Content:  strings.NewReader("%PDF-1.4\nresume\n"),
	}}

	app, err := f.service.Submit(context.Background(), applicant, in)
	require.NoError(t, err)

	assert.Equal(t, valueobject.ApplicationStatusPending, app.Status)
	assert.Equal(t, "ivan@example.com", app.Email)
	assert.Equal(t, post.ClientID, app.ClientID)
	require.Len(t, app.Attachments, 1)
	assert.Equal(t, "application/pdf", app.Attachments[0].FileType)

	rc, err := f.files.Open(context.Background(), app.Attachments[0].FilePath)
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "%PDF-1.4\nresume\n", string(data))

	assert.Equal(t, []string{events.ApplicationSubmitted}, f.notifier.eventsFor(post.ClientID))
}

func TestApplicationService_SubmitToOwnPost(t *testing.T) {
	f := newApplicationFixture(t)
	owner := clientActor()
	post := approvedPost(owner.UserID)
	f.posts.On("GetByID", mock.Anything, post.ID).Return(post, nil)

	_, err := f.service.Submit(context.Background(), owner, validSubmission(post.ID))
	requireAppCode(t, err, apperror.ErrCodeForbidden)
	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestApplicationService_SubmitCoverLetterLength(t *testing.T) {
	f := newApplicationFixture(t)
	applicant := freelancerActor()
	post := approvedPost(uuid.New())

	in := validSubmission(post.ID)
	in.CoverLetter = strings.Repeat("б", 49)
	_, err := f.service.Submit(context.Background(), applicant, in)
	requireAppCode(t, err, apperror.ErrCodeValidation)

	f.posts.On("GetByID", mock.Anything, post.ID).Return(post, nil)
	f.repo.On("HasActive", mock.Anything, post.ID, applicant.UserID).Return(false, nil)
	f.repo.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	in.CoverLetter = strings.Repeat("б", 50)
	_, err = f.service.Submit(context.Background(), applicant, in)
	assert.NoError(t, err)
}

func TestApplicationService_SubmitDuplicate(t *testing.T) {
	f := newApplicationFixture(t)
	applicant := freelancerActor()
	post := approvedPost(uuid.New())

	f.posts.On("GetByID", mock.Anything, post.ID).Return(post, nil)
	f.repo.On("HasActive", mock.Anything, post.ID, applicant.UserID).Return(true, nil)

	_, err := f.service.Submit(context.Background(), applicant, validSubmission(post.ID))
	requireAppCode(t, err, apperror.ErrCodeConflict)
}

func TestApplicationService_SubmitRaceRemovesFiles(t *testing.T) {
	f := newApplicationFixture(t)
	applicant := freelancerActor()
	post := approvedPost(uuid.New())

	var saved models.Attachments
	f.posts.On("GetByID", mock.Anything, post.ID).Return(post, nil)
	f.repo.On("HasActive", mock.Anything, post.ID, applicant.UserID).Return(false, nil)
	f.repo.On("Create", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { saved = args.Get(1).(*models.JobApplication).Attachments }).
		Return(repository.ErrDuplicateApplication)

	in := validSubmission(post.ID)
	in.Attachments = []AttachmentUpload{{FileName: "cv.pdf", Content: strings.NewReader("%PDF-1.4 body")}}

	_, err := f.service.Submit(context.Background(), applicant, in)
	requireAppCode(t, err, apperror.ErrCodeConflict)

	require.Len(t, saved, 1)
	_, err = f.files.Open(context.Background(), saved[0].FilePath)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestApplicationService_SubmitRejectsUnsupportedFile(t *testing.T) {
	f := newApplicationFixture(t)
	applicant := freelancerActor()
	post := approvedPost(uuid.New())

	f.posts.On("GetByID", mock.Anything, post.ID).Return(post, nil)
	f.repo.On("HasActive", mock.Anything, post.ID, applicant.UserID).Return(false, nil)

	in := validSubmission(post.ID)
	in.Attachments = []AttachmentUpload{{FileName: "cv.pdf", Content: strings.NewReader("just some text")}}

	_, err := f.service.Submit(context.Background(), applicant, in)
	appErr := requireAppCode(t, err, apperror.ErrCodeValidation)
	assert.Contains(t, appErr.Message, "cv.pdf")
}

func pendingApplication(clientID, applicantID uuid.UUID) *models.JobApplication {
	return &models.JobApplication{
		ID:          uuid.New(),
		PostID:      uuid.New(),
		ClientID:    clientID,
		ApplicantID: applicantID,
		Status:      valueobject.ApplicationStatusPending,
	}
}

func TestApplicationService_ChangeStatusAppendsHistory(t *testing.T) {
	f := newApplicationFixture(t)
	owner := clientActor()
	app := pendingApplication(owner.UserID, uuid.New())

	last := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	f.service.now = func() time.Time { return last.Add(-time.Hour) }

	f.repo.On("GetByID", mock.Anything, app.ID).Return(app, nil)
	f.repo.On("LastChangedAt", mock.Anything, app.ID).Return(last, nil)

	var change models.StatusChange
	f.repo.On("ApplyStatusChange", mock.Anything, app.ID, mock.Anything).
		Run(func(args mock.Arguments) { change = args.Get(2).(models.StatusChange) }).
		Return(&models.JobApplication{ID: app.ID, ApplicantID: app.ApplicantID, Status: valueobject.ApplicationStatusUnderReview}, nil)

	got, err := f.service.ChangeStatus(context.Background(), owner, app.ID, ChangeStatusInput{
		Status:   "Under Review",
		Feedback: strPtr("  Looks good  "),
	})
	require.NoError(t, err)

	assert.Equal(t, valueobject.ApplicationStatusUnderReview, got.Status)
	assert.Equal(t, valueobject.ApplicationStatusPending, change.From)
	assert.Equal(t, valueobject.ApplicationStatusUnderReview, change.Entry.Status)
	assert.True(t, change.Entry.ChangedAt.After(last), "changedAt должен расти даже при отстающих часах")
	require.NotNil(t, change.Feedback)
	assert.Equal(t, "Looks good", *change.Feedback)
	assert.Nil(t, change.InterviewDetails)
	assert.Equal(t, []string{events.ApplicationStatusChanged}, f.notifier.eventsFor(app.ApplicantID))
	f.repo.AssertNumberOfCalls(t, "ApplyStatusChange", 1)
}

func TestApplicationService_ChangeStatusRules(t *testing.T) {
	owner := clientActor()

	t.Run("same status", func(t *testing.T) {
		f := newApplicationFixture(t)
		app := pendingApplication(owner.UserID, uuid.New())
		f.repo.On("GetByID", mock.Anything, app.ID).Return(app, nil)

		_, err := f.service.ChangeStatus(context.Background(), owner, app.ID, ChangeStatusInput{Status: "Pending"})
		requireAppCode(t, err, apperror.ErrCodeValidation)
	})

	t.Run("applicant cannot change", func(t *testing.T) {
		f := newApplicationFixture(t)
		applicant := freelancerActor()
		app := pendingApplication(owner.UserID, applicant.UserID)
		f.repo.On("GetByID", mock.Anything, app.ID).Return(app, nil)

		_, err := f.service.ChangeStatus(context.Background(), applicant, app.ID, ChangeStatusInput{Status: "Hired"})
		requireAppCode(t, err, apperror.ErrCodeForbidden)
	})

	t.Run("terminal status for owner", func(t *testing.T) {
		f := newApplicationFixture(t)
		app := pendingApplication(owner.UserID, uuid.New())
		app.Status = valueobject.ApplicationStatusHired
		f.repo.On("GetByID", mock.Anything, app.ID).Return(app, nil)

		_, err := f.service.ChangeStatus(context.Background(), owner, app.ID, ChangeStatusInput{Status: "Declined"})
		requireAppCode(t, err, apperror.ErrCodeValidation)
		f.repo.AssertNotCalled(t, "ApplyStatusChange", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("admin bypasses table", func(t *testing.T) {
		f := newApplicationFixture(t)
		app := pendingApplication(owner.UserID, uuid.New())
		app.Status = valueobject.ApplicationStatusHired
		f.repo.On("GetByID", mock.Anything, app.ID).Return(app, nil)
		f.repo.On("LastChangedAt", mock.Anything, app.ID).Return(time.Time{}, nil)
		f.repo.On("ApplyStatusChange", mock.Anything, app.ID, mock.Anything).
			Return(&models.JobApplication{ID: app.ID, Status: valueobject.ApplicationStatusDeclined}, nil)

		got, err := f.service.ChangeStatus(context.Background(), adminActor(), app.ID, ChangeStatusInput{Status: "Declined"})
		require.NoError(t, err)
		assert.Equal(t, valueobject.ApplicationStatusDeclined, got.Status)
	})

	t.Run("unknown status", func(t *testing.T) {
		f := newApplicationFixture(t)
		_, err := f.service.ChangeStatus(context.Background(), owner, uuid.New(), ChangeStatusInput{Status: "Maybe"})
		requireAppCode(t, err, apperror.ErrCodeValidation)
	})

	t.Run("concurrent change", func(t *testing.T) {
		f := newApplicationFixture(t)
		app := pendingApplication(owner.UserID, uuid.New())
		f.repo.On("GetByID", mock.Anything, app.ID).Return(app, nil)
		f.repo.On("LastChangedAt", mock.Anything, app.ID).Return(time.Time{}, nil)
		f.repo.On("ApplyStatusChange", mock.Anything, app.ID, mock.Anything).Return(nil, repository.ErrApplicationStateChanged)

		_, err := f.service.ChangeStatus(context.Background(), owner, app.ID, ChangeStatusInput{Status: "Accepted"})
		requireAppCode(t, err, apperror.ErrCodeConflict)
	})
}

func TestApplicationService_InterviewDetailsRequired(t *testing.T) {
	owner := clientActor()

	tests := []struct {
		name    string
		details *models.InterviewDetails
		field   string
	}{
		{"no details", nil, "scheduledDate"},
		{"no date", &models.InterviewDetails{ScheduledTime: "10:00", Location: "Office"}, "scheduledDate"},
		{"no time", &models.InterviewDetails{ScheduledDate: "2025-12-01", Location: "Office"}, "scheduledTime"},
		{"no location", &models.InterviewDetails{ScheduledDate: "2025-12-01", ScheduledTime: "10:00"}, "location"},
		{"online without link", &models.InterviewDetails{ScheduledDate: "2025-12-01", ScheduledTime: "10:00", Location: "Zoom", IsOnline: true}, "meetingLink"},
		{"bad link", &models.InterviewDetails{ScheduledDate: "2025-12-01", ScheduledTime: "10:00", Location: "Zoom", MeetingLink: "zoom"}, "meetingLink"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newApplicationFixture(t)
			app := pendingApplication(owner.UserID, uuid.New())
			f.repo.On("GetByID", mock.Anything, app.ID).Return(app, nil)

			_, err := f.service.ChangeStatus(context.Background(), owner, app.ID, ChangeStatusInput{
				Status:           "Interview Scheduled",
				InterviewDetails: tt.details,
			})
			appErr := requireAppCode(t, err, apperror.ErrCodeValidation)
			assert.Contains(t, appErr.Message, tt.field)
			f.repo.AssertNotCalled(t, "ApplyStatusChange", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestApplicationService_InterviewScheduled(t *testing.T) {
	f := newApplicationFixture(t)
	owner := clientActor()
	app := pendingApplication(owner.UserID, uuid.New())

	f.repo.On("GetByID", mock.Anything, app.ID).Return(app, nil)
	f.repo.On("LastChangedAt", mock.Anything, app.ID).Return(time.Time{}, nil)
	f.repo.On("ApplyStatusChange", mock.Anything, app.ID, mock.MatchedBy(func(c models.StatusChange) bool {
		return c.InterviewDetails != nil &&
			c.InterviewDetails.Location == "Zoom" &&
			c.InterviewDetails.MeetingLink == "https://zoom.us/j/1"
	})).Return(&models.JobApplication{ID: app.ID, Status: valueobject.ApplicationStatusInterviewScheduled}, nil)

	_, err := f.service.ChangeStatus(context.Background(), owner, app.ID, ChangeStatusInput{
		Status: "Interview Scheduled",
		InterviewDetails: &models.InterviewDetails{
			ScheduledDate: "2025-12-01",
			ScheduledTime: "10:30",
			Location:      " Zoom ",
			IsOnline:      true,
			MeetingLink:   "https://zoom.us/j/1",
		},
	})
	require.NoError(t, err)
	f.repo.AssertExpectations(t)
}

func TestApplicationService_Withdraw(t *testing.T) {
	applicant := freelancerActor()

	t.Run("pending", func(t *testing.T) {
		f := newApplicationFixture(t)
		app := pendingApplication(uuid.New(), applicant.UserID)
		f.repo.On("GetByID", mock.Anything, app.ID).Return(app, nil)
		f.repo.On("Withdraw", mock.Anything, app.ID, mock.AnythingOfType("time.Time")).Return(nil)

		require.NoError(t, f.service.Withdraw(context.Background(), applicant, app.ID))
		assert.Equal(t, []string{events.ApplicationWithdrawn}, f.notifier.eventsFor(app.ClientID))
	})

	for _, status := range []valueobject.ApplicationStatus{
		valueobject.ApplicationStatusUnderReview,
		valueobject.ApplicationStatusAccepted,
		valueobject.ApplicationStatusInterviewScheduled,
		valueobject.ApplicationStatusHired,
		valueobject.ApplicationStatusDeclined,
		valueobject.ApplicationStatusRejected,
	} {
		t.Run(string(status), func(t *testing.T) {
			f := newApplicationFixture(t)
			app := pendingApplication(uuid.New(), applicant.UserID)
			app.Status = status
			f.repo.On("GetByID", mock.Anything, app.ID).Return(app, nil)

			err := f.service.Withdraw(context.Background(), applicant, app.ID)
			assert.Equal(t, errWithdrawNotPending, err)
			f.repo.AssertNotCalled(t, "Withdraw", mock.Anything, mock.Anything, mock.Anything)
		})
	}

	t.Run("raced with status change", func(t *testing.T) {
		f := newApplicationFixture(t)
		app := pendingApplication(uuid.New(), applicant.UserID)
		f.repo.On("GetByID", mock.Anything, app.ID).Return(app, nil)
		f.repo.On("Withdraw", mock.Anything, app.ID, mock.Anything).Return(repository.ErrApplicationStateChanged)

		assert.Equal(t, errWithdrawNotPending, f.service.Withdraw(context.Background(), applicant, app.ID))
	})

	t.Run("not the applicant", func(t *testing.T) {
		f := newApplicationFixture(t)
		app := pendingApplication(uuid.New(), uuid.New())
		f.repo.On("GetByID", mock.Anything, app.ID).Return(app, nil)

		err := f.service.Withdraw(context.Background(), applicant, app.ID)
		requireAppCode(t, err, apperror.ErrCodeForbidden)
	})
}

func TestApplicationService_QuickActions(t *testing.T) {
	f := newApplicationFixture(t)
	owner := clientActor()
	app := pendingApplication(owner.UserID, uuid.New())
	app.Status = valueobject.ApplicationStatusAccepted
	f.repo.On("GetByID", mock.Anything, app.ID).Return(app, nil)

	actions, err := f.service.QuickActions(context.Background(), owner, app.ID)
	require.NoError(t, err)
	assert.Contains(t, actions, valueobject.ApplicationStatusInterviewScheduled)
	assert.Contains(t, actions, valueobject.ApplicationStatusHired)
	assert.NotContains(t, actions, valueobject.ApplicationStatusPending)
}

func TestApplicationService_GetVisibility(t *testing.T) {
	f := newApplicationFixture(t)
	owner := clientActor()
	applicant := freelancerActor()
	app := pendingApplication(owner.UserID, applicant.UserID)
	history := []models.StatusHistoryEntry{{Status: valueobject.ApplicationStatusPending}}

	f.repo.On("GetByID", mock.Anything, app.ID).Return(app, nil)
	f.repo.On("ListHistory", mock.Anything, app.ID).Return(history, nil)

	got, err := f.service.Get(context.Background(), applicant, app.ID)
	require.NoError(t, err)
	assert.Equal(t, history, got.StatusHistory)

	_, err = f.service.Get(context.Background(), freelancerActor(), app.ID)
	requireAppCode(t, err, apperror.ErrCodeForbidden)

	_, _, err = f.service.OpenAttachment(context.Background(), owner, app.ID, 0)
	assert.True(t, apperror.IsNotFound(err))
}
