package stats

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockUploadRepo struct{ mock.Mock }

func (m *MockUploadRepo) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockJobRepo struct{ mock.Mock }

func (m *MockJobRepo) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockCollections struct{ mock.Mock }

func (m *MockCollections) Default() string { return "resumes" }

func (m *MockCollections) Names() []string {
	args := m.Called()
	return args.Get(0).([]string)
}

func (m *MockCollections) Count(ctx context.Context, name string) (int, error) {
	args := m.Called(ctx, name)
	return args.Int(0), args.Error(1)
}

func TestHandler_GetStats_Table(t *testing.T) {
	tests := []struct {
		name       string
		setupMocks func(*MockUploadRepo, *MockJobRepo, *MockCollections)
		wantStatus int
		wantError  bool
		checkBody  func(*testing.T, map[string]interface{})
	}{
		{
			name: "Success",
			setupMocks: func(u *MockUploadRepo, j *MockJobRepo, c *MockCollections) {
				u.On("Count", mock.Anything).Return(10, nil)
				j.On("Count", mock.Anything).Return(5, nil)
				c.On("Names").Return([]string{"resumes", "facts__chat-1"})
				c.On("Count", mock.Anything, "resumes").Return(100, nil)
				c.On("Count", mock.Anything, "facts__chat-1").Return(7, nil)
			},
			wantStatus: http.StatusOK,
			checkBody: func(t *testing.T, body map[string]interface{}) {
				data := body["data"].(map[string]interface{})
				assert.EqualValues(t, 10, data["uploads"])
				assert.EqualValues(t, 5, data["failed_jobs"])
				assert.EqualValues(t, 107, data["documents"])
				cols := data["collections"].([]interface{})
				assert.Len(t, cols, 2)
				assert.Equal(t, "facts__chat-1", cols[0].(map[string]interface{})["name"])
			},
		},
		{
			name: "Default collection without handle",
			setupMocks: func(u *MockUploadRepo, j *MockJobRepo, c *MockCollections) {
				u.On("Count", mock.Anything).Return(0, nil)
				j.On("Count", mock.Anything).Return(0, nil)
				c.On("Names").Return([]string{})
				c.On("Count", mock.Anything, "resumes").Return(0, nil)
			},
			wantStatus: http.StatusOK,
			checkBody: func(t *testing.T, body map[string]interface{}) {
				data := body["data"].(map[string]interface{})
				assert.Len(t, data["collections"], 1)
			},
		},
		{
			name: "UploadRepo Error",
			setupMocks: func(u *MockUploadRepo, j *MockJobRepo, c *MockCollections) {
				u.On("Count", mock.Anything).Return(0, errors.New("db error"))
			},
			wantStatus: http.StatusInternalServerError,
			wantError:  true,
		},
		{
			name: "JobRepo Error",
			setupMocks: func(u *MockUploadRepo, j *MockJobRepo, c *MockCollections) {
				u.On("Count", mock.Anything).Return(10, nil)
				j.On("Count", mock.Anything).Return(0, errors.New("db error"))
			},
			wantStatus: http.StatusInternalServerError,
			wantError:  true,
		},
		{
			name: "Collection Error",
			setupMocks: func(u *MockUploadRepo, j *MockJobRepo, c *MockCollections) {
				u.On("Count", mock.Anything).Return(10, nil)
				j.On("Count", mock.Anything).Return(5, nil)
				c.On("Names").Return([]string{"resumes"})
				c.On("Count", mock.Anything, "resumes").Return(0, errors.New("weaviate error"))
			},
			wantStatus: http.StatusInternalServerError,
			wantError:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mUpload := new(MockUploadRepo)
			mJob := new(MockJobRepo)
			mColl := new(MockCollections)

			tt.setupMocks(mUpload, mJob, mColl)

			h := NewHandler(mUpload, mJob, mColl)
			req := httptest.NewRequest("GET", "/stats", nil)
			w := httptest.NewRecorder()

			h.GetStats(w, req)

			resp := w.Result()
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			var body map[string]interface{}
			err := json.NewDecoder(resp.Body).Decode(&body)
			assert.NoError(t, err)

			if tt.wantError {
				assert.Contains(t, body, "error")
				errMap := body["error"].(map[string]interface{})
				assert.Equal(t, "INTERNAL_ERROR", errMap["code"])
			} else {
				tt.checkBody(t, body)
			}
		})
	}
}
