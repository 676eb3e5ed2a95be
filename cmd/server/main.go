package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/hospital-ledger-system/internal/apperrors"
	"github.com/sheikh-saqib/hospital-ledger-system/internal/config"
	"github.com/sheikh-saqib/hospital-ledger-system/internal/events/kafka"
	"github.com/sheikh-saqib/hospital-ledger-system/internal/interfaces"
	"github.com/sheikh-saqib/hospital-ledger-system/internal/ledger"
	"github.com/sheikh-saqib/hospital-ledger-system/internal/logger"
	"github.com/sheikh-saqib/hospital-ledger-system/internal/models"
	"github.com/sheikh-saqib/hospital-ledger-system/internal/storage/memory"
	"github.com/sheikh-saqib/hospital-ledger-system/internal/storage/postgres"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel, "hospital-ledger")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store interfaces.RecordStore
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatal("database connection failed", zap.Error(err))
		}
		pg := postgres.NewStore(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Fatal("schema setup failed", zap.Error(err))
		}
		store = pg
		log.Info("using postgres store")
	} else {
		store = memory.NewStore()
		log.Warn("DATABASE_URL not set, using in-memory store; data will not survive restarts")
	}
	defer store.Close()

	var publisher interfaces.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kp := kafka.NewPublisher(cfg.KafkaBrokers)
		defer kp.Close()
		publisher = kp
		log.Info("publishing mutation events", zap.Strings("brokers", cfg.KafkaBrokers))
	}

	srv := &server{
		ledger: ledger.NewService(store, publisher, log),
		stats:  ledger.NewAggregator(store),
		logger: log,
	}

	httpSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: srv.routes(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
	}()

	log.Info("starting server", zap.String("addr", cfg.HTTPAddr))
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server failed", zap.Error(err))
	}
}

type server struct {
	ledger *ledger.Service
	stats  *ledger.Aggregator
	logger *zap.Logger
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /patients", s.withActor(s.listPatients))
	mux.HandleFunc("POST /patients", s.withActor(s.addPatient))
	mux.HandleFunc("DELETE /patients/{id}", s.withActor(s.deletePatient))
	mux.HandleFunc("GET /transactions/{patientId}", s.withActor(s.listTransactions))
	mux.HandleFunc("POST /transactions", s.withActor(s.addTransaction))
	mux.HandleFunc("GET /expenses", s.withActor(s.listExpenses))
	mux.HandleFunc("POST /expenses", s.withActor(s.addExpense))
	mux.HandleFunc("GET /audit", s.withActor(s.listAudit))
	mux.HandleFunc("GET /stats", s.withActor(s.getStats))
	return mux
}

type actorHandler func(w http.ResponseWriter, r *http.Request, actor models.Actor)

// withActor reads the identity asserted by the upstream auth proxy. The
// ledger performs no credential checks of its own.
func (s *server) withActor(next actorHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := r.Header.Get("X-Username")
		if username == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
			return
		}
		id, _ := strconv.ParseInt(r.Header.Get("X-User-Id"), 10, 64)
		next(w, r, models.Actor{
			ID:       id,
			Username: username,
			Role:     r.Header.Get("X-User-Role"),
		})
	}
}

func (s *server) listPatients(w http.ResponseWriter, r *http.Request, _ models.Actor) {
	patients, err := s.ledger.ListPatients(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if patients == nil {
		patients = []models.Patient{}
	}
	writeJSON(w, http.StatusOK, patients)
}

func (s *server) addPatient(w http.ResponseWriter, r *http.Request, actor models.Actor) {
	var req struct {
		Name          string `json:"name"`
		Type          string `json:"type"`
		AdmissionDate string `json:"admission_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	patient, err := s.ledger.AddPatient(r.Context(), actor, req.Name, req.Type, req.AdmissionDate)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, patient)
}

func (s *server) deletePatient(w http.ResponseWriter, r *http.Request, actor models.Actor) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid patient id"})
		return
	}

	if err := s.ledger.DeletePatient(r.Context(), actor, id); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *server) listTransactions(w http.ResponseWriter, r *http.Request, _ models.Actor) {
	patientID, err := strconv.ParseInt(r.PathValue("patientId"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid patient id"})
		return
	}

	txns, err := s.ledger.ListPatientTransactions(r.Context(), patientID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if txns == nil {
		txns = []models.PatientTransaction{}
	}
	writeJSON(w, http.StatusOK, txns)
}

func (s *server) addTransaction(w http.ResponseWriter, r *http.Request, actor models.Actor) {
	var req struct {
		PatientID   int64           `json:"patient_id"`
		Date        string          `json:"date"`
		Description string          `json:"description"`
		Amount      decimal.Decimal `json:"amount"`
		IsDeposit   bool            `json:"is_deposit"`
		IsAmbulance bool            `json:"is_ambulance"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	txn, err := s.ledger.AddPatientTransaction(r.Context(), actor,
		req.PatientID, req.Date, req.Description, req.Amount, req.IsDeposit, req.IsAmbulance)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, txn)
}

func (s *server) listExpenses(w http.ResponseWriter, r *http.Request, _ models.Actor) {
	expenses, err := s.ledger.ListGeneralExpenses(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if expenses == nil {
		expenses = []models.GeneralExpense{}
	}
	writeJSON(w, http.StatusOK, expenses)
}

func (s *server) addExpense(w http.ResponseWriter, r *http.Request, actor models.Actor) {
	var req struct {
		Date        string          `json:"date"`
		Category    string          `json:"category"`
		Description string          `json:"description"`
		PatientName string          `json:"patient_name"`
		Amount      decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	expense, err := s.ledger.AddGeneralExpense(r.Context(), actor,
		req.Date, req.Category, req.Description, req.PatientName, req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, expense)
}

func (s *server) listAudit(w http.ResponseWriter, r *http.Request, actor models.Actor) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := s.ledger.RecentAuditEntries(r.Context(), actor, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if entries == nil {
		entries = []models.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *server) getStats(w http.ResponseWriter, r *http.Request, _ models.Actor) {
	stats, err := s.stats.ComputeStats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// writeError maps error kinds to HTTP statuses. Only the stable code and
// message reach the caller; the cause goes to the log.
func (s *server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := apperrors.CodeStorageFailure
	message := "internal storage failure"

	var e *apperrors.Error
	if errors.As(err, &e) {
		code, message = e.Code, e.Message
		switch e.Kind {
		case apperrors.KindValidation:
			status = http.StatusBadRequest
		case apperrors.KindNotFound:
			status = http.StatusNotFound
		case apperrors.KindUnauthorized:
			status = http.StatusForbidden
		}
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"code": code, "error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
