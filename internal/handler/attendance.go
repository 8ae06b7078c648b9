package handler

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"classroll/internal/attendance"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type saveAttendanceRequest struct {
	Entries map[string]attendance.Entry `json:"entries"`
}

func (h *Handler) attendanceSheet(c *gin.Context) {
	sheet, err := h.Attendance.Sheet(c.Request.Context(), claims(c).UserID(), c.Param("id"), c.Query("date"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sheet)
}

func (h *Handler) saveAttendance(c *gin.Context) {
	var req saveAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid attendance body")
		return
	}
	sheet, err := h.Attendance.Save(c.Request.Context(), claims(c).UserID(), c.Param("id"), c.Query("date"), req.Entries)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sheet": sheet, "message": "Attendance saved successfully"})
}

func (h *Handler) exportAttendance(c *gin.Context) {
	from, to := c.Query("from"), c.Query("to")
	var buf bytes.Buffer
	if err := h.Attendance.Export(c.Request.Context(), claims(c).UserID(), c.Param("id"), from, to, &buf); err != nil {
		h.fail(c, err)
		return
	}
	from, to, _ = h.Attendance.ExportRange(from, to)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="attendance_%s_%s.xlsx"`, from, to))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
