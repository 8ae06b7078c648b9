package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"classroll/internal/auth"
)

type signUpRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	FullName string `json:"full_name" binding:"required"`
}

type studentSignUpRequest struct {
	signUpRequest
	StudentID string `json:"student_id" binding:"required"`
}

type signInRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type tokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func (h *Handler) signUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email, password and full name are required")
		return
	}
	p, err := h.Accounts.SignUpTeacher(c.Request.Context(), req.Email, req.Password, req.FullName)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"profile": p, "message": "Account created. You can now sign in."})
}

func (h *Handler) studentSignUp(c *gin.Context) {
	var req studentSignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email, password, full name and student id are required")
		return
	}
	p, err := h.Accounts.SignUpStudent(c.Request.Context(), req.Email, req.Password, req.FullName, req.StudentID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"profile": p, "message": "Account created. You can now sign in."})
}

func (h *Handler) signIn(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email and password are required")
		return
	}
	s, err := h.Accounts.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) refresh(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "refresh_token is required")
		return
	}
	s, err := h.Accounts.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) signOut(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "refresh_token is required")
		return
	}
	if err := h.Accounts.SignOut(c.Request.Context(), req.RefreshToken); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Signed out successfully"})
}

func (h *Handler) me(c *gin.Context) {
	p, err := h.Accounts.Profile(c.Request.Context(), claims(c).UserID())
	if err != nil {
		h.fail(c, err)
		return
	}
	if p == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "account no longer exists"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": p})
}

func (h *Handler) dashboard(c *gin.Context) {
	cl := claims(c)
	p, err := h.Accounts.Profile(c.Request.Context(), cl.UserID())
	if err != nil {
		h.fail(c, err)
		return
	}
	if p == nil || p.Role != auth.RoleStudent {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "student account required"})
		return
	}
	d, err := h.Attendance.Dashboard(c.Request.Context(), cl.Email)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": p, "dashboard": d})
}
