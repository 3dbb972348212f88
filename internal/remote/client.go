package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"dentcal/internal/config"
	appLog "dentcal/internal/log"
	"dentcal/internal/model"
)

const dateLayout = "2006-01-02"

// Client implements Gateway over the store's REST API:
//
//	GET    /appointments?date=YYYY-MM-DD
//	POST   /appointments
//	GET    /appointments/{id}
//	PATCH  /appointments/{id}
//	DELETE /appointments/{id}
//	GET    /branches
//	GET    /patients?search=term
//
// Deployments disagree on which wire field carries the appointment label
// ("title", "notes", or the legacy "appoitment_reason"); reads accept any of
// them and writes use the configured field name.
type Client struct {
	baseURL    string
	labelField string
	token      string
	client     *http.Client
}

// NewClient builds a Client from the remote section of the config. The
// bearer token is read from the environment variable cfg.Remote.TokenEnv at
// call time by the caller and passed in, so the config file never holds
// secrets.
func NewClient(cfg *config.Config, token string) *Client {
	timeout := time.Duration(cfg.Remote.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    cfg.Remote.BaseURL,
		labelField: cfg.LabelField,
		token:      token,
		client:     &http.Client{Timeout: timeout},
	}
}

func (c *Client) List(ctx context.Context, date time.Time) ([]model.Appointment, error) {
	q := url.Values{"date": {date.Format(dateLayout)}}
	body, err := c.do(ctx, http.MethodGet, "/appointments?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var dtos []appointmentDTO
	if err := decodeData(body, &dtos); err != nil {
		return nil, fmt.Errorf("remote: decode appointment list: %w", err)
	}

	out := make([]model.Appointment, 0, len(dtos))
	for _, dto := range dtos {
		appt, convErr := dto.toModel()
		if convErr != nil {
			// Skip a malformed record rather than blanking the whole week.
			appLog.Error("remote: skipping malformed appointment record", convErr, "id", dto.id())
			continue
		}
		out = append(out, appt)
	}
	return out, nil
}

func (c *Client) Get(ctx context.Context, id string) (model.AppointmentDetail, error) {
	body, err := c.do(ctx, http.MethodGet, "/appointments/"+url.PathEscape(id), nil)
	if err != nil {
		return model.AppointmentDetail{}, err
	}

	var dto detailDTO
	if err := decodeData(body, &dto); err != nil {
		return model.AppointmentDetail{}, fmt.Errorf("remote: decode appointment detail: %w", err)
	}
	return dto.toModel()
}

func (c *Client) Create(ctx context.Context, appt model.Appointment) (model.Appointment, error) {
	payload, err := json.Marshal(c.toWire(appt))
	if err != nil {
		return model.Appointment{}, err
	}

	body, err := c.do(ctx, http.MethodPost, "/appointments", payload)
	if err != nil {
		return model.Appointment{}, err
	}

	var dto appointmentDTO
	if err := decodeData(body, &dto); err != nil {
		return model.Appointment{}, fmt.Errorf("remote: decode created appointment: %w", err)
	}
	return dto.toModel()
}

func (c *Client) Update(ctx context.Context, id string, appt model.Appointment) (model.Appointment, error) {
	payload, err := json.Marshal(c.toWire(appt))
	if err != nil {
		return model.Appointment{}, err
	}

	body, err := c.do(ctx, http.MethodPatch, "/appointments/"+url.PathEscape(id), payload)
	if err != nil {
		return model.Appointment{}, err
	}

	var dto appointmentDTO
	if err := decodeData(body, &dto); err != nil {
		return model.Appointment{}, fmt.Errorf("remote: decode updated appointment: %w", err)
	}
	return dto.toModel()
}

func (c *Client) Delete(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/appointments/"+url.PathEscape(id), nil)
	return err
}

func (c *Client) Branches(ctx context.Context) ([]model.Branch, error) {
	body, err := c.do(ctx, http.MethodGet, "/branches", nil)
	if err != nil {
		return nil, err
	}

	var dtos []branchDTO
	if err := decodeData(body, &dtos); err != nil {
		return nil, fmt.Errorf("remote: decode branch list: %w", err)
	}

	out := make([]model.Branch, 0, len(dtos))
	for _, dto := range dtos {
		out = append(out, model.Branch{ID: dto.id(), Name: dto.Name})
	}
	return out, nil
}

func (c *Client) SearchPatients(ctx context.Context, term string) ([]model.Patient, error) {
	q := url.Values{"search": {term}}
	body, err := c.do(ctx, http.MethodGet, "/patients?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var dtos []patientDTO
	if err := decodeData(body, &dtos); err != nil {
		return nil, fmt.Errorf("remote: decode patient list: %w", err)
	}

	out := make([]model.Patient, 0, len(dtos))
	for _, dto := range dtos {
		out = append(out, model.Patient{ID: dto.id(), Name: dto.Name, CustomID: dto.CustomID})
	}
	return out, nil
}

// do issues one request against the store and returns the raw response body.
// Remote failures are wrapped with enough context for the call-site log line;
// a 404 maps to model.ErrNotFound.
func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("remote: %s %s: read body: %w", method, path, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("remote: %s %s: %w", method, path, model.ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("remote: %s %s: %s", method, path, resp.Status)
	}
	return body, nil
}

// toWire maps an Appointment into the outgoing JSON object, writing the
// label under the configured field name.
func (c *Client) toWire(a model.Appointment) map[string]any {
	out := map[string]any{
		"start_time": a.Start.Format(time.RFC3339),
		"end_time":   a.End.Format(time.RFC3339),
		"patient_id": a.PatientID,
		"branch_id":  a.BranchID,
		"status":     string(a.Status),
	}
	field := c.labelField
	if field == "" {
		field = "title"
	}
	out[field] = a.Label
	return out
}

// decodeData unmarshals a response body into v, unwrapping any number of
// {"data": ...} envelopes on the way (the store wraps lists once and patient
// search twice).
func decodeData(body []byte, v any) error {
	raw := json.RawMessage(body)
	for {
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Data == nil {
			break
		}
		raw = envelope.Data
	}
	return json.Unmarshal(raw, v)
}

// appointmentDTO is the wire shape of a list-view appointment. Both "id" and
// the mongo-style "_id" are accepted, as are the three label field variants.
type appointmentDTO struct {
	ID    string `json:"id"`
	AltID string `json:"_id"`

	Title  string `json:"title"`
	Notes  string `json:"notes"`
	Reason string `json:"appoitment_reason"`

	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	PatientID string `json:"patient_id"`
	BranchID  string `json:"branch_id"`
	Status    string `json:"status"`
}

func (d appointmentDTO) id() string {
	if d.ID != "" {
		return d.ID
	}
	return d.AltID
}

func (d appointmentDTO) label() string {
	switch {
	case d.Title != "":
		return d.Title
	case d.Notes != "":
		return d.Notes
	default:
		return d.Reason
	}
}

func (d appointmentDTO) toModel() (model.Appointment, error) {
	start, err := parseInstant(d.StartTime)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("start_time: %w", err)
	}
	end, err := parseInstant(d.EndTime)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("end_time: %w", err)
	}
	return model.Appointment{
		ID:        d.id(),
		Label:     d.label(),
		Start:     start,
		End:       end,
		PatientID: d.PatientID,
		BranchID:  d.BranchID,
		Status:    model.Status(d.Status),
	}, nil
}

// detailDTO is the expanded get-by-id shape, where patient_id and branch_id
// are resolved to display objects (or remain bare ids on older stores).
type detailDTO struct {
	appointmentDTO

	Patient refDTO `json:"patient_id"`
	Branch  refDTO `json:"branch_id"`
}

func (d detailDTO) toModel() (model.AppointmentDetail, error) {
	base := d.appointmentDTO
	base.PatientID = d.Patient.ID
	base.BranchID = d.Branch.ID

	appt, err := base.toModel()
	if err != nil {
		return model.AppointmentDetail{}, err
	}
	return model.AppointmentDetail{
		Appointment:     appt,
		PatientName:     d.Patient.Name,
		PatientCustomID: d.Patient.CustomID,
		BranchName:      d.Branch.Name,
	}, nil
}

// refDTO decodes a foreign reference that is either an expanded object
// ({"_id": ..., "name": ...}) or a bare id string.
type refDTO struct {
	ID       string
	Name     string
	CustomID string
}

func (r *refDTO) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		r.ID = s
		return nil
	}

	var obj struct {
		ID       string `json:"id"`
		AltID    string `json:"_id"`
		Name     string `json:"name"`
		CustomID string `json:"custom_id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
			return nil
		}
		return err
	}
	r.ID = obj.ID
	if r.ID == "" {
		r.ID = obj.AltID
	}
	r.Name = obj.Name
	r.CustomID = obj.CustomID
	return nil
}

type branchDTO struct {
	ID    string `json:"id"`
	AltID string `json:"_id"`
	Name  string `json:"name"`
}

func (d branchDTO) id() string {
	if d.ID != "" {
		return d.ID
	}
	return d.AltID
}

type patientDTO struct {
	ID       string `json:"id"`
	AltID    string `json:"_id"`
	Name     string `json:"name"`
	CustomID string `json:"custom_id"`
}

func (d patientDTO) id() string {
	if d.ID != "" {
		return d.ID
	}
	return d.AltID
}

// parseInstant accepts RFC 3339 with or without sub-second precision and
// converts to the host's local wall clock, which is what the grid math
// operates on.
func parseInstant(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.Local(), nil
}
