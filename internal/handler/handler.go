// Package handler exposes the services over the JSON API and serves the
// single-page frontend.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"classroll/internal/account"
	"classroll/internal/attendance"
	"classroll/internal/auth"
	"classroll/internal/checkin"
	"classroll/internal/httpmiddleware"
	"classroll/internal/qrsession"
	"classroll/internal/roster"
)

const studentNotFoundMessage = "Student not found. Please check your details or contact your teacher to add you to the system."

// Handler holds the services behind the API.
type Handler struct {
	Accounts    *account.Service
	Roster      *roster.Service
	Attendance  *attendance.Service
	Sessions    *qrsession.Manager
	Checkins    *checkin.Service
	Issuer      *auth.Issuer
	Log         *zap.Logger
	QRImageSize int

	// ScanLimit, when set, throttles /v1/scan per signed-in user.
	ScanLimit *httpmiddleware.SimpleTokenBucket
}

// Register mounts the /v1 API on r.
func (h *Handler) Register(r gin.IRouter) {
	v1 := r.Group("/v1")

	pub := v1.Group("/auth")
	pub.POST("/signup", h.signUp)
	pub.POST("/student-signup", h.studentSignUp)
	pub.POST("/signin", h.signIn)
	pub.POST("/refresh", h.refresh)
	pub.POST("/signout", h.signOut)

	authed := v1.Group("", auth.Authenticate(h.Issuer))
	authed.GET("/me", h.me)
	authed.GET("/me/dashboard", auth.RequireRole(auth.RoleStudent), h.dashboard)

	scan := []gin.HandlerFunc{auth.RequireRole(auth.RoleStudent)}
	if h.ScanLimit != nil {
		scan = append(scan, h.ScanLimit.Limit(bySubject))
	}
	authed.POST("/scan", append(scan, h.scan)...)

	t := authed.Group("", auth.RequireRole(auth.RoleTeacher))
	t.GET("/classes", h.listClasses)
	t.POST("/classes", h.createClass)
	t.GET("/classes/:id", h.getClass)
	t.PUT("/classes/:id", h.updateClass)
	t.DELETE("/classes/:id", h.deleteClass)
	t.GET("/classes/:id/students", h.classStudents)
	t.POST("/classes/:id/students/import", h.importStudents)

	t.GET("/students", h.listStudents)
	t.POST("/students", h.createStudent)
	t.GET("/students/:id", h.getStudent)
	t.PUT("/students/:id", h.updateStudent)
	t.DELETE("/students/:id", h.deleteStudent)

	t.GET("/classes/:id/attendance", h.attendanceSheet)
	t.PUT("/classes/:id/attendance", h.saveAttendance)
	t.GET("/classes/:id/attendance/export", h.exportAttendance)

	t.POST("/classes/:id/qr-session", h.generateSession)
	t.GET("/classes/:id/qr-session", h.activeSession)
	t.GET("/classes/:id/qr-session/qr.png", h.sessionImage)
	t.GET("/classes/:id/qr-session/live", h.liveSession)
	t.DELETE("/qr-sessions/:id", h.endSession)
}

func bySubject(c *gin.Context) string {
	if claims, ok := auth.FromContext(c); ok {
		return claims.UserID()
	}
	return c.ClientIP()
}

// claims returns the caller's claims; Authenticate guarantees they exist.
func claims(c *gin.Context) auth.Claims {
	cl, _ := auth.FromContext(c)
	return cl
}

func (h *Handler) fail(c *gin.Context, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.Log.Error("request failed",
			zap.String("method", c.Request.Method), zap.String("route", c.FullPath()), zap.Error(err))
		msg = "Something went wrong. Please try again."
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}

func statusFor(err error) (int, string) {
	var verr *roster.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Error()

	case errors.Is(err, account.ErrStudentNotFound):
		return http.StatusNotFound, studentNotFoundMessage
	case errors.Is(err, account.ErrEmailTaken):
		return http.StatusConflict, err.Error()
	case errors.Is(err, account.ErrInvalidCredentials), errors.Is(err, account.ErrInvalidToken):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, account.ErrMissingField), errors.Is(err, auth.ErrWeakPassword):
		return http.StatusBadRequest, err.Error()

	case errors.Is(err, roster.ErrClassNotFound), errors.Is(err, qrsession.ErrClassNotFound):
		return http.StatusNotFound, "class not found"
	case errors.Is(err, roster.ErrStudentNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, qrsession.ErrSessionNotFound):
		return http.StatusNotFound, err.Error()

	case errors.Is(err, attendance.ErrInvalidDate),
		errors.Is(err, attendance.ErrInvalidStatus),
		errors.Is(err, attendance.ErrUnknownStudent),
		errors.Is(err, attendance.ErrNotesTooLong):
		return http.StatusBadRequest, err.Error()

	case errors.Is(err, qrsession.ErrMalformedPayload):
		return http.StatusBadRequest, "Invalid QR code format"
	case errors.Is(err, qrsession.ErrSessionExpired):
		return http.StatusGone, "QR code session has expired"
	case errors.Is(err, qrsession.ErrSessionInvalid):
		return http.StatusNotFound, "Invalid or expired QR code"
	case errors.Is(err, checkin.ErrNotRostered):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, checkin.ErrNotEnrolled):
		return http.StatusForbidden, err.Error()
	}
	return http.StatusInternalServerError, err.Error()
}
