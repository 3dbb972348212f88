// apptstored is a self-contained appointment store speaking the same REST
// protocol dentcal's remote client expects. It exists for local development
// and demos, so the calendar can run without a clinic backend.
package main

import (
	"errors"
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// AppointmentRecord is the persisted appointment row.
type AppointmentRecord struct {
	ID        string    `gorm:"primaryKey"`
	Title     string    `gorm:"not null"`
	Start     time.Time `gorm:"not null;index"`
	End       time.Time `gorm:"not null"`
	PatientID string    `gorm:"not null;index"` // References: patients(id)
	BranchID  string    `gorm:"index"`
	Status    string    `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time

	// Relations
	Patient Patient `gorm:"foreignKey:PatientID;references:ID"`
	Branch  Branch  `gorm:"foreignKey:BranchID;references:ID"`
}

// Patient is a patient row. CustomID is the clinic's chart number.
type Patient struct {
	ID       string `gorm:"primaryKey"`
	Name     string `gorm:"not null;index"`
	CustomID string `gorm:"index"`
}

// Branch is a clinic location row.
type Branch struct {
	ID   string `gorm:"primaryKey"`
	Name string `gorm:"not null"`
}

// appointmentRequest is the create/update payload. PATCH payloads may carry
// any subset; pointer fields distinguish absent from zero.
type appointmentRequest struct {
	Title     *string `json:"title"`
	Notes     *string `json:"notes"`
	Start     *string `json:"start_time" validate:"omitempty,iso8601"`
	End       *string `json:"end_time" validate:"omitempty,iso8601"`
	PatientID *string `json:"patient_id"`
	BranchID  *string `json:"branch_id"`
	Status    *string `json:"status" validate:"omitempty,oneof=UPCOMING COMPLETED CANCELLED"`
}

// appointmentResponse is the list-view wire shape.
type appointmentResponse struct {
	ID        string `json:"_id"`
	Title     string `json:"title"`
	Start     string `json:"start_time"`
	End       string `json:"end_time"`
	PatientID string `json:"patient_id"`
	BranchID  string `json:"branch_id,omitempty"`
	Status    string `json:"status"`
}

// appointmentDetailResponse expands the patient_id and branch_id references
// into display objects under the same keys.
type appointmentDetailResponse struct {
	ID      string      `json:"_id"`
	Title   string      `json:"title"`
	Start   string      `json:"start_time"`
	End     string      `json:"end_time"`
	Status  string      `json:"status"`
	Patient *patientRef `json:"patient_id,omitempty"`
	Branch  *branchRef  `json:"branch_id,omitempty"`
}

type patientRef struct {
	ID       string `json:"_id"`
	Name     string `json:"name"`
	CustomID string `json:"custom_id,omitempty"`
}

type branchRef struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

type server struct {
	db       *gorm.DB
	validate *validator.Validate
	token    string
}

func main() {
	var (
		dbPath string
		listen string
		seed   bool
	)
	flag.StringVar(&dbPath, "db", "./apptstore.db", "Path to the SQLite database file")
	flag.StringVar(&listen, "listen", ":6060", "HTTP listen address")
	flag.BoolVar(&seed, "seed", false, "Insert demo branches and patients on startup")
	flag.Parse()

	_ = godotenv.Load()

	validate := validator.New()
	_ = validate.RegisterValidation("iso8601", isISO8601)

	db, err := initDB(dbPath)
	if err != nil {
		log.Fatal("failed to initialize database ", err)
	}
	if seed {
		if err := seedDemoData(db); err != nil {
			log.Fatal("failed to seed demo data ", err)
		}
	}

	s := &server{
		db:       db,
		validate: validate,
		token:    os.Getenv("APPTSTORE_TOKEN"),
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.CORS())
	e.Use(s.requireToken)

	e.GET("/appointments", s.listAppointments)
	e.POST("/appointments", s.createAppointment)
	e.GET("/appointments/:id", s.getAppointment)
	e.PATCH("/appointments/:id", s.updateAppointment)
	e.DELETE("/appointments/:id", s.deleteAppointment)

	e.GET("/branches", s.listBranches)
	e.GET("/patients", s.searchPatients)

	if err := e.Start(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		e.Logger.Fatal(err)
	}
}

func initDB(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&Patient{}, &Branch{}, &AppointmentRecord{}); err != nil {
		return nil, err
	}

	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

func seedDemoData(db *gorm.DB) error {
	branches := []Branch{
		{ID: uuid.NewString(), Name: "Downtown"},
		{ID: uuid.NewString(), Name: "Riverside"},
	}
	patients := []Patient{
		{ID: uuid.NewString(), Name: "Kim Minji", CustomID: "C-1001"},
		{ID: uuid.NewString(), Name: "Lee Haneul", CustomID: "C-1002"},
		{ID: uuid.NewString(), Name: "Park Jiwoo", CustomID: "C-1003"},
	}
	if err := db.Save(&branches).Error; err != nil {
		return err
	}
	return db.Save(&patients).Error
}

// requireToken enforces the bearer token when APPTSTORE_TOKEN is set.
func (s *server) requireToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.token == "" {
			return next(c)
		}
		if c.Request().Header.Get("Authorization") != "Bearer "+s.token {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
		}
		return next(c)
	}
}

// listAppointments returns the appointments of one calendar day:
// GET /appointments?date=2026-03-04.
func (s *server) listAppointments(c echo.Context) error {
	dateStr := c.QueryParam("date")
	if dateStr == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing date parameter"})
	}
	day, err := time.ParseInLocation("2006-01-02", dateStr, time.Local)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date, expected YYYY-MM-DD"})
	}

	var records []AppointmentRecord
	if err := s.db.
		Where("start >= ? AND start < ?", day, day.AddDate(0, 0, 1)).
		Order("start asc").
		Find(&records).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}

	resp := make([]appointmentResponse, 0, len(records))
	for _, r := range records {
		resp = append(resp, toResponse(r))
	}
	return c.JSON(http.StatusOK, echo.Map{"data": resp})
}

func (s *server) getAppointment(c echo.Context) error {
	var record AppointmentRecord
	err := s.db.Preload("Patient").Preload("Branch").
		First(&record, "id = ?", c.Param("id")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "appointment not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}

	detail := appointmentDetailResponse{
		ID:     record.ID,
		Title:  record.Title,
		Start:  record.Start.Format(time.RFC3339),
		End:    record.End.Format(time.RFC3339),
		Status: record.Status,
	}
	if record.Patient.ID != "" {
		detail.Patient = &patientRef{
			ID:       record.Patient.ID,
			Name:     record.Patient.Name,
			CustomID: record.Patient.CustomID,
		}
	}
	if record.Branch.ID != "" {
		detail.Branch = &branchRef{ID: record.Branch.ID, Name: record.Branch.Name}
	}
	return c.JSON(http.StatusOK, echo.Map{"data": detail})
}

func (s *server) createAppointment(c echo.Context) error {
	var req appointmentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "malformed body"})
	}
	if err := s.validate.Struct(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
	}
	if req.Start == nil || req.End == nil || req.PatientID == nil {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "start, end and patient_id are required"})
	}

	record := AppointmentRecord{
		ID:     uuid.NewString(),
		Status: "UPCOMING",
	}
	if err := applyRequest(&record, &req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
	}
	if !record.End.After(record.Start) {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "end must be after start"})
	}

	if err := s.db.Create(&record).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusCreated, echo.Map{"data": toResponse(record)})
}

func (s *server) updateAppointment(c echo.Context) error {
	var req appointmentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "malformed body"})
	}
	if err := s.validate.Struct(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
	}

	var record AppointmentRecord
	err := s.db.First(&record, "id = ?", c.Param("id")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "appointment not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}

	if err := applyRequest(&record, &req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
	}
	if !record.End.After(record.Start) {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "end must be after start"})
	}

	if err := s.db.Save(&record).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": toResponse(record)})
}

func (s *server) deleteAppointment(c echo.Context) error {
	res := s.db.Delete(&AppointmentRecord{}, "id = ?", c.Param("id"))
	if res.Error != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": res.Error.Error()})
	}
	if res.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "appointment not found"})
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *server) listBranches(c echo.Context) error {
	var branches []Branch
	if err := s.db.Order("name asc").Find(&branches).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}

	resp := make([]branchRef, 0, len(branches))
	for _, b := range branches {
		resp = append(resp, branchRef{ID: b.ID, Name: b.Name})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": resp})
}

// searchPatients matches on name or chart number:
// GET /patients?search=kim. The result list sits one envelope deeper than
// the other endpoints, which dentcal's client unwraps recursively.
func (s *server) searchPatients(c echo.Context) error {
	term := c.QueryParam("search")

	q := s.db.Order("name asc").Limit(25)
	if term != "" {
		like := "%" + term + "%"
		q = q.Where("name LIKE ? OR custom_id LIKE ?", like, like)
	}

	var patients []Patient
	if err := q.Find(&patients).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}

	resp := make([]patientRef, 0, len(patients))
	for _, p := range patients {
		resp = append(resp, patientRef{ID: p.ID, Name: p.Name, CustomID: p.CustomID})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": echo.Map{"data": resp}})
}

func applyRequest(record *AppointmentRecord, req *appointmentRequest) error {
	if req.Title != nil {
		record.Title = *req.Title
	}
	// Some deployments send the label as "notes"; both land in Title.
	if req.Notes != nil && record.Title == "" {
		record.Title = *req.Notes
	}
	if req.Start != nil {
		t, err := time.Parse(time.RFC3339, *req.Start)
		if err != nil {
			return errors.New("invalid start instant")
		}
		record.Start = t
	}
	if req.End != nil {
		t, err := time.Parse(time.RFC3339, *req.End)
		if err != nil {
			return errors.New("invalid end instant")
		}
		record.End = t
	}
	if req.PatientID != nil {
		record.PatientID = *req.PatientID
	}
	if req.BranchID != nil {
		record.BranchID = *req.BranchID
	}
	if req.Status != nil {
		record.Status = *req.Status
	}
	return nil
}

func toResponse(r AppointmentRecord) appointmentResponse {
	return appointmentResponse{
		ID:        r.ID,
		Title:     r.Title,
		Start:     r.Start.Format(time.RFC3339),
		End:       r.End.Format(time.RFC3339),
		PatientID: r.PatientID,
		BranchID:  r.BranchID,
		Status:    r.Status,
	}
}

func isISO8601(fl validator.FieldLevel) bool {
	v := fl.Field().String()
	if v == "" {
		return true
	}
	_, err := time.Parse(time.RFC3339, v)
	return err == nil
}
