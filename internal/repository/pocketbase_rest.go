// Package repository provides PocketBase REST API implementations
package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dawam/internal/models"
)

// Collection names used by the migrations and the REST repositories
const (
	CollectionAttendance    = "attendance"
	CollectionTasks         = "tasks"
	CollectionWorkerStatus  = "worker_status"
	CollectionSettings      = "settings"
	CollectionUsers         = "app_users"
	CollectionNotifications = "notifications"
)

const pbPageSize = 500

// pbClient is the shared HTTP plumbing of every PocketBase REST repository
type pbClient struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
}

func newPBClient(baseURL, authToken string) *pbClient {
	return &pbClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		authToken:  authToken,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// NewPocketBaseRESTStore creates every repository on top of one PocketBase server
func NewPocketBaseRESTStore(baseURL, authToken string) *Store {
	c := newPBClient(baseURL, authToken)
	return &Store{
		Records:       &PocketBaseRESTRecordRepository{c},
		Tasks:         &PocketBaseRESTTaskRepository{c},
		Statuses:      &PocketBaseRESTStatusRepository{c},
		Settings:      &PocketBaseRESTSettingsRepository{c},
		Users:         &PocketBaseRESTUserRepository{c},
		Notifications: &PocketBaseRESTNotificationRepository{c},
	}
}

func (c *pbClient) addAuthHeader(req *http.Request) {
	if c.authToken != "" {
		req.Header.Set("Authorization", c.authToken)
	}
}

// quote renders a string literal for a PocketBase filter expression
func quote(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "\\'") + "'"
}

func (c *pbClient) do(ctx context.Context, method, apiURL string, payload interface{}, out interface{}) error {
	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode payload: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.addAuthHeader(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("❌ HTTP error %s %s: %v", method, apiURL, err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusNoContent {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s: %s - %s", method, apiURL, resp.Status, string(respBody))
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// list fetches every page of a collection matching filter
func (c *pbClient) list(ctx context.Context, collection, filter, sort string, decode func(raw json.RawMessage) error) error {
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("page", fmt.Sprint(page))
		q.Set("perPage", fmt.Sprint(pbPageSize))
		if filter != "" {
			q.Set("filter", filter)
		}
		if sort != "" {
			q.Set("sort", sort)
		}
		apiURL := fmt.Sprintf("%s/api/collections/%s/records?%s", c.baseURL, collection, q.Encode())

		var result struct {
			Page       int               `json:"page"`
			TotalPages int               `json:"totalPages"`
			Items      []json.RawMessage `json:"items"`
		}
		if err := c.do(ctx, http.MethodGet, apiURL, nil, &result); err != nil {
			return fmt.Errorf("failed to list %s: %w", collection, err)
		}
		for _, item := range result.Items {
			if err := decode(item); err != nil {
				return fmt.Errorf("failed to decode %s item: %w", collection, err)
			}
		}
		if page >= result.TotalPages {
			return nil
		}
	}
}

func (c *pbClient) create(ctx context.Context, collection string, data map[string]interface{}) (string, error) {
	apiURL := fmt.Sprintf("%s/api/collections/%s/records", c.baseURL, collection)
	var result struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, apiURL, data, &result); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", collection, err)
	}
	return result.ID, nil
}

func (c *pbClient) update(ctx context.Context, collection, id string, data map[string]interface{}) error {
	apiURL := fmt.Sprintf("%s/api/collections/%s/records/%s", c.baseURL, collection, url.PathEscape(id))
	if err := c.do(ctx, http.MethodPatch, apiURL, data, nil); err != nil {
		return fmt.Errorf("failed to update %s %s: %w", collection, id, err)
	}
	return nil
}

func (c *pbClient) delete(ctx context.Context, collection, id string) error {
	apiURL := fmt.Sprintf("%s/api/collections/%s/records/%s", c.baseURL, collection, url.PathEscape(id))
	if err := c.do(ctx, http.MethodDelete, apiURL, nil, nil); err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", collection, id, err)
	}
	return nil
}

func (c *pbClient) getOne(ctx context.Context, collection, id string, out interface{}) error {
	apiURL := fmt.Sprintf("%s/api/collections/%s/records/%s", c.baseURL, collection, url.PathEscape(id))
	return c.do(ctx, http.MethodGet, apiURL, nil, out)
}

// PocketBaseRESTRecordRepository implements RecordRepository
type PocketBaseRESTRecordRepository struct{ c *pbClient }

type pbAttendance struct {
	ID        string  `json:"id"`
	UserID    string  `json:"user_id"`
	Type      string  `json:"type"`
	Timestamp string  `json:"timestamp"`
	Date      string  `json:"date"`
	GPSLat    float64 `json:"gps_lat"`
	GPSLng    float64 `json:"gps_lng"`
	Selfie    string  `json:"selfie"`
}

func (p pbAttendance) toModel() (models.AttendanceRecord, error) {
	ts, err := time.Parse(time.RFC3339Nano, p.Timestamp)
	if err != nil {
		return models.AttendanceRecord{}, fmt.Errorf("bad timestamp %q: %w", p.Timestamp, err)
	}
	return models.AttendanceRecord{
		ID:        p.ID,
		UserID:    p.UserID,
		Kind:      models.RecordKind(p.Type),
		Timestamp: ts,
		Date:      p.Date,
		Location:  models.Coordinate{Latitude: p.GPSLat, Longitude: p.GPSLng},
		PhotoRef:  p.Selfie,
	}, nil
}

func (r *PocketBaseRESTRecordRepository) Append(ctx context.Context, record *models.AttendanceRecord) error {
	data := map[string]interface{}{
		"record_key": record.ID,
		"user_id":    record.UserID,
		"type":       string(record.Kind),
		"timestamp":  record.Timestamp.UTC().Format(time.RFC3339Nano),
		"date":       record.Date,
		"gps_lat":    record.Location.Latitude,
		"gps_lng":    record.Location.Longitude,
		"selfie":     record.PhotoRef,
	}
	id, err := r.c.create(ctx, CollectionAttendance, data)
	if err != nil {
		return err
	}
	record.ID = id

	log.Printf("💾 Saved %s record for user %s on %s", record.Kind, record.UserID, record.Date)
	return nil
}

func (r *PocketBaseRESTRecordRepository) listFiltered(ctx context.Context, filter string) ([]models.AttendanceRecord, error) {
	var out []models.AttendanceRecord
	err := r.c.list(ctx, CollectionAttendance, filter, "+timestamp", func(raw json.RawMessage) error {
		var item pbAttendance
		if err := json.Unmarshal(raw, &item); err != nil {
			return err
		}
		rec, err := item.toModel()
		if err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	return out, err
}

func (r *PocketBaseRESTRecordRepository) ListByUser(ctx context.Context, userID string) ([]models.AttendanceRecord, error) {
	return r.listFiltered(ctx, "user_id="+quote(userID))
}

func (r *PocketBaseRESTRecordRepository) ListAll(ctx context.Context) ([]models.AttendanceRecord, error) {
	return r.listFiltered(ctx, "")
}

// PocketBaseRESTTaskRepository implements TaskRepository
type PocketBaseRESTTaskRepository struct{ c *pbClient }

type pbTask struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	AssignedTo     string `json:"assigned_to"`
	IsCompleted    bool   `json:"is_completed"`
	CreatedAt      string `json:"created_at"`
	Priority       string `json:"priority"`
	ReportResponse string `json:"report_response"`
}

func (p pbTask) toModel() models.Task {
	created, _ := time.Parse(time.RFC3339Nano, p.CreatedAt)
	return models.Task{
		ID:             p.ID,
		Title:          p.Title,
		AssignedUserID: p.AssignedTo,
		Completed:      p.IsCompleted,
		CreatedAt:      created,
		Priority:       models.Priority(p.Priority),
		ReportText:     p.ReportResponse,
	}
}

func (r *PocketBaseRESTTaskRepository) List(ctx context.Context) ([]models.Task, error) {
	var out []models.Task
	err := r.c.list(ctx, CollectionTasks, "", "+created_at", func(raw json.RawMessage) error {
		var item pbTask
		if err := json.Unmarshal(raw, &item); err != nil {
			return err
		}
		out = append(out, item.toModel())
		return nil
	})
	return out, err
}

func (r *PocketBaseRESTTaskRepository) Get(ctx context.Context, taskID string) (*models.Task, error) {
	var item pbTask
	if err := r.c.getOne(ctx, CollectionTasks, taskID, &item); err != nil {
		return nil, fmt.Errorf("task %s: %w", taskID, err)
	}
	task := item.toModel()
	return &task, nil
}

func (r *PocketBaseRESTTaskRepository) Add(ctx context.Context, task *models.Task) error {
	data := map[string]interface{}{
		"title":           task.Title,
		"assigned_to":     task.AssignedUserID,
		"is_completed":    task.Completed,
		"created_at":      task.CreatedAt.UTC().Format(time.RFC3339Nano),
		"priority":        string(task.Priority),
		"report_response": task.ReportText,
	}
	id, err := r.c.create(ctx, CollectionTasks, data)
	if err != nil {
		return err
	}
	task.ID = id
	return nil
}

func (r *PocketBaseRESTTaskRepository) SetCompletion(ctx context.Context, taskID string, completed bool, reportText string) error {
	data := map[string]interface{}{
		"is_completed": completed,
	}
	if reportText != "" {
		current, err := r.Get(ctx, taskID)
		if err != nil {
			return err
		}
		if current.ReportText == "" {
			data["report_response"] = reportText
		}
	}
	return r.c.update(ctx, CollectionTasks, taskID, data)
}

// PocketBaseRESTStatusRepository implements StatusRepository
type PocketBaseRESTStatusRepository struct{ c *pbClient }

type pbStatus struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Status string `json:"status"`
}

func (r *PocketBaseRESTStatusRepository) find(ctx context.Context, userID string) (*pbStatus, error) {
	var found *pbStatus
	err := r.c.list(ctx, CollectionWorkerStatus, "user_id="+quote(userID), "", func(raw json.RawMessage) error {
		var item pbStatus
		if err := json.Unmarshal(raw, &item); err != nil {
			return err
		}
		if found == nil {
			found = &item
		}
		return nil
	})
	return found, err
}

func (r *PocketBaseRESTStatusRepository) Get(ctx context.Context, userID string) (models.WorkerStatus, error) {
	found, err := r.find(ctx, userID)
	if err != nil {
		return "", err
	}
	if found == nil {
		return models.StatusOffline, nil
	}
	return models.WorkerStatus(found.Status), nil
}

func (r *PocketBaseRESTStatusRepository) Set(ctx context.Context, userID string, status models.WorkerStatus) error {
	found, err := r.find(ctx, userID)
	if err != nil {
		return err
	}

	data := map[string]interface{}{
		"user_id": userID,
		"status":  string(status),
	}
	if found != nil {
		return r.c.update(ctx, CollectionWorkerStatus, found.ID, data)
	}
	_, err = r.c.create(ctx, CollectionWorkerStatus, data)
	return err
}

func (r *PocketBaseRESTStatusRepository) All(ctx context.Context) (map[string]models.WorkerStatus, error) {
	out := make(map[string]models.WorkerStatus)
	err := r.c.list(ctx, CollectionWorkerStatus, "", "", func(raw json.RawMessage) error {
		var item pbStatus
		if err := json.Unmarshal(raw, &item); err != nil {
			return err
		}
		out[item.UserID] = models.WorkerStatus(item.Status)
		return nil
	})
	return out, err
}

// PocketBaseRESTSettingsRepository implements SettingsRepository on a single-row collection
type PocketBaseRESTSettingsRepository struct{ c *pbClient }

type pbSettings struct {
	ID          string  `json:"id"`
	LocationLat float64 `json:"location_lat"`
	LocationLng float64 `json:"location_lng"`
	Radius      float64 `json:"radius"`
}

func (r *PocketBaseRESTSettingsRepository) first(ctx context.Context) (*pbSettings, error) {
	var found *pbSettings
	err := r.c.list(ctx, CollectionSettings, "", "", func(raw json.RawMessage) error {
		var item pbSettings
		if err := json.Unmarshal(raw, &item); err != nil {
			return err
		}
		if found == nil {
			found = &item
		}
		return nil
	})
	return found, err
}

func (r *PocketBaseRESTSettingsRepository) Get(ctx context.Context) (models.WorkSite, error) {
	found, err := r.first(ctx)
	if err != nil {
		return models.WorkSite{}, err
	}
	if found == nil {
		return DefaultSite, nil
	}
	return models.WorkSite{Latitude: found.LocationLat, Longitude: found.LocationLng, RadiusKm: found.Radius}, nil
}

func (r *PocketBaseRESTSettingsRepository) Update(ctx context.Context, site models.WorkSite) error {
	found, err := r.first(ctx)
	if err != nil {
		return err
	}
	data := map[string]interface{}{
		"location_lat": site.Latitude,
		"location_lng": site.Longitude,
		"radius":       site.RadiusKm,
	}
	if found != nil {
		return r.c.update(ctx, CollectionSettings, found.ID, data)
	}
	_, err = r.c.create(ctx, CollectionSettings, data)
	return err
}

// PocketBaseRESTUserRepository implements UserRepository
type PocketBaseRESTUserRepository struct{ c *pbClient }

type pbUser struct {
	ID             string `json:"id"`
	FullName       string `json:"full_name"`
	Email          string `json:"email"`
	Role           string `json:"role"`
	Photo          string `json:"photo"`
	TelegramChatID int64  `json:"telegram_chat_id"`
}

func (p pbUser) toModel() models.User {
	return models.User{
		ID:             p.ID,
		FullName:       p.FullName,
		Email:          p.Email,
		Role:           models.Role(p.Role),
		Photo:          p.Photo,
		TelegramChatID: p.TelegramChatID,
	}
}

func userData(u *models.User) map[string]interface{} {
	return map[string]interface{}{
		"full_name":        u.FullName,
		"email":            strings.ToLower(u.Email),
		"role":             string(u.Role),
		"photo":            u.Photo,
		"telegram_chat_id": u.TelegramChatID,
	}
}

func (r *PocketBaseRESTUserRepository) listFiltered(ctx context.Context, filter string) ([]models.User, error) {
	var out []models.User
	err := r.c.list(ctx, CollectionUsers, filter, "+full_name", func(raw json.RawMessage) error {
		var item pbUser
		if err := json.Unmarshal(raw, &item); err != nil {
			return err
		}
		out = append(out, item.toModel())
		return nil
	})
	return out, err
}

func (r *PocketBaseRESTUserRepository) List(ctx context.Context) ([]models.User, error) {
	return r.listFiltered(ctx, "")
}

func (r *PocketBaseRESTUserRepository) Get(ctx context.Context, userID string) (*models.User, error) {
	var item pbUser
	if err := r.c.getOne(ctx, CollectionUsers, userID, &item); err != nil {
		return nil, fmt.Errorf("user %s: %w", userID, err)
	}
	u := item.toModel()
	return &u, nil
}

func (r *PocketBaseRESTUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	log.Printf("🔍 Looking up user by email: %s", email)
	users, err := r.listFiltered(ctx, "email="+quote(strings.ToLower(strings.TrimSpace(email))))
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("user %s: %w", email, ErrNotFound)
	}
	return &users[0], nil
}

func (r *PocketBaseRESTUserRepository) Create(ctx context.Context, user *models.User) error {
	id, err := r.c.create(ctx, CollectionUsers, userData(user))
	if err != nil {
		return err
	}
	user.ID = id
	return nil
}

func (r *PocketBaseRESTUserRepository) Update(ctx context.Context, user *models.User) error {
	return r.c.update(ctx, CollectionUsers, user.ID, userData(user))
}

func (r *PocketBaseRESTUserRepository) Delete(ctx context.Context, userID string) error {
	return r.c.delete(ctx, CollectionUsers, userID)
}

// PocketBaseRESTNotificationRepository implements NotificationRepository
type PocketBaseRESTNotificationRepository struct{ c *pbClient }

type pbNotification struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	IsRead    bool   `json:"is_read"`
}

func (r *PocketBaseRESTNotificationRepository) Add(ctx context.Context, n *models.Notification) error {
	data := map[string]interface{}{
		"user_id":   n.UserID,
		"title":     n.Title,
		"message":   n.Message,
		"type":      string(n.Urgency),
		"timestamp": n.Timestamp.UTC().Format(time.RFC3339Nano),
		"is_read":   n.Read,
	}
	id, err := r.c.create(ctx, CollectionNotifications, data)
	if err != nil {
		return err
	}
	n.ID = id
	return nil
}

func (r *PocketBaseRESTNotificationRepository) ListByUser(ctx context.Context, userID string) ([]models.Notification, error) {
	var out []models.Notification
	err := r.c.list(ctx, CollectionNotifications, "user_id="+quote(userID), "-timestamp", func(raw json.RawMessage) error {
		var item pbNotification
		if err := json.Unmarshal(raw, &item); err != nil {
			return err
		}
		ts, _ := time.Parse(time.RFC3339Nano, item.Timestamp)
		out = append(out, models.Notification{
			ID:        item.ID,
			UserID:    item.UserID,
			Title:     item.Title,
			Message:   item.Message,
			Urgency:   models.Urgency(item.Type),
			Timestamp: ts,
			Read:      item.IsRead,
		})
		return nil
	})
	return out, err
}

func (r *PocketBaseRESTNotificationRepository) MarkAllRead(ctx context.Context, userID string) error {
	var unread []string
	err := r.c.list(ctx, CollectionNotifications, "user_id="+quote(userID)+" && is_read=false", "", func(raw json.RawMessage) error {
		var item pbNotification
		if err := json.Unmarshal(raw, &item); err != nil {
			return err
		}
		unread = append(unread, item.ID)
		return nil
	})
	if err != nil {
		return err
	}
	for _, id := range unread {
		if err := r.c.update(ctx, CollectionNotifications, id, map[string]interface{}{"is_read": true}); err != nil {
			return err
		}
	}
	return nil
}
