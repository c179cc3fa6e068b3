// Package api exposes the admin REST interface for managing bookings.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"massagebot/internal/booking"
	"massagebot/internal/database"
	"massagebot/internal/export"
	"massagebot/internal/models"
)

// Server serves the admin API. All routes under /api/v1 require the
// configured bearer token.
type Server struct {
	db       *database.DB
	bookings *booking.Service
	token    string
	logger   *zerolog.Logger
}

func NewServer(db *database.DB, bookings *booking.Service, token string, logger *zerolog.Logger) *Server {
	return &Server{db: db, bookings: bookings, token: token, logger: logger}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1", s.auth())
	v1.GET("/services", s.listServices)
	v1.GET("/bookings", s.listBookings)
	v1.GET("/bookings/export", s.exportBookings)
	v1.GET("/bookings/:id", s.getBooking)
	v1.POST("/bookings", s.createBooking)
	v1.PUT("/bookings/:id", s.updateBooking)
	v1.DELETE("/bookings/:id", s.cancelBooking)

	return r
}

// Run serves the API until ctx is cancelled.
func (s *Server) Run(ctx context.Context, listen string) error {
	srv := &http.Server{
		Addr:              listen,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info().Str("listen", listen).Msg("admin api started")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") || strings.TrimPrefix(header, "Bearer ") != s.token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Next()
	}
}

func (s *Server) listServices(c *gin.Context) {
	services, err := s.db.ListActiveServices(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"services": services})
}

func (s *Server) listBookings(c *gin.Context) {
	from, to, err := dateRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	status := c.Query("status")
	if status != "" && !models.ValidStatus(status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown status %q", status)})
		return
	}

	bookings, err := s.db.ListBookings(c.Request.Context(), from, to, status)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings, "count": len(bookings)})
}

func (s *Server) getBooking(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking id"})
		return
	}

	b, err := s.db.GetBooking(c.Request.Context(), id)
	if errors.Is(err, models.ErrBookingNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (s *Server) createBooking(c *gin.Context) {
	var in struct {
		UserID          int64  `json:"user_id" binding:"required"`
		ServiceID       int64  `json:"service_id" binding:"required"`
		BookingDateTime string `json:"booking_datetime" binding:"required"`
		Notes           string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	at, err := time.Parse(time.RFC3339, in.BookingDateTime)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "booking_datetime must be RFC3339"})
		return
	}

	id, err := s.bookings.Allocate(c.Request.Context(), in.UserID, in.ServiceID, at, in.Notes)
	if err != nil {
		s.failDomain(c, err)
		return
	}

	b, err := s.db.GetBooking(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

func (s *Server) updateBooking(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking id"})
		return
	}

	var in struct {
		BookingDateTime *string `json:"booking_datetime"`
		ServiceID       *int64  `json:"service_id"`
		Notes           *string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var newTime *time.Time
	if in.BookingDateTime != nil {
		at, err := time.Parse(time.RFC3339, *in.BookingDateTime)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "booking_datetime must be RFC3339"})
			return
		}
		newTime = &at
	}

	ok, err := s.bookings.Update(c.Request.Context(), id, newTime, in.ServiceID, in.Notes)
	if err != nil {
		s.failDomain(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
		return
	}

	b, err := s.db.GetBooking(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (s *Server) cancelBooking(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking id"})
		return
	}

	// Admin cancellation skips the ownership check.
	cancelled, err := s.bookings.Cancel(c.Request.Context(), id, nil)
	if err != nil {
		s.failDomain(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": cancelled})
}

func (s *Server) exportBookings(c *gin.Context) {
	from, to, err := dateRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bookings, err := s.db.ListBookings(c.Request.Context(), from, to, c.Query("status"))
	if err != nil {
		s.fail(c, err)
		return
	}

	filename := fmt.Sprintf("bookings_%s_%s.xlsx", from.Format("20060102"), to.Format("20060102"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := export.BookingsReport(c.Writer, bookings); err != nil {
		s.logger.Error().Err(err).Msg("export failed")
	}
}

// dateRange parses from/to query params (RFC3339); the default window is
// the next 30 days.
func dateRange(c *gin.Context) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from, to := now.AddDate(0, 0, -1), now.AddDate(0, 0, 30)

	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return from, to, fmt.Errorf("from must be RFC3339")
		}
		from = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return from, to, fmt.Errorf("to must be RFC3339")
		}
		to = t
	}
	if !to.After(from) {
		return from, to, fmt.Errorf("to must be after from")
	}
	return from, to, nil
}

// failDomain maps allocator errors to HTTP statuses.
func (s *Server) failDomain(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrSlotUnavailable):
		c.JSON(http.StatusConflict, gin.H{"error": "slot unavailable"})
	case errors.Is(err, models.ErrDuplicateBooking):
		c.JSON(http.StatusConflict, gin.H{"error": "duplicate booking"})
	case errors.Is(err, models.ErrServiceNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "service not found"})
	case errors.Is(err, models.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	case errors.Is(err, models.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
	case errors.Is(err, models.ErrPastDate):
		c.JSON(http.StatusBadRequest, gin.H{"error": "booking time must be in the future"})
	default:
		s.fail(c, err)
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	s.logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
