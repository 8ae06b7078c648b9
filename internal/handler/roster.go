package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"classroll/internal/roster"
)

// maxImportBytes caps an uploaded roster workbook.
const maxImportBytes = 5 << 20

func (h *Handler) listClasses(c *gin.Context) {
	classes, err := h.Roster.Classes(c.Request.Context(), claims(c).UserID())
	if err != nil {
		h.fail(c, err)
		return
	}
	if classes == nil {
		classes = []roster.Class{}
	}
	c.JSON(http.StatusOK, gin.H{"classes": classes})
}

func (h *Handler) createClass(c *gin.Context) {
	var in roster.ClassInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid class body")
		return
	}
	class, err := h.Roster.CreateClass(c.Request.Context(), claims(c).UserID(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"class": class, "message": "Class created successfully"})
}

func (h *Handler) getClass(c *gin.Context) {
	class, err := h.Roster.Class(c.Request.Context(), claims(c).UserID(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"class": class})
}

func (h *Handler) updateClass(c *gin.Context) {
	var in roster.ClassInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid class body")
		return
	}
	class, err := h.Roster.UpdateClass(c.Request.Context(), claims(c).UserID(), c.Param("id"), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"class": class, "message": "Class updated successfully"})
}

func (h *Handler) deleteClass(c *gin.Context) {
	if err := h.Roster.DeleteClass(c.Request.Context(), claims(c).UserID(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Class deleted successfully"})
}

func (h *Handler) classStudents(c *gin.Context) {
	class, students, err := h.Roster.ClassRoster(c.Request.Context(), claims(c).UserID(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if students == nil {
		students = []roster.Student{}
	}
	c.JSON(http.StatusOK, gin.H{"class": class, "students": students})
}

func (h *Handler) importStudents(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImportBytes)
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		badRequest(c, "upload an .xlsx file in the \"file\" field")
		return
	}
	defer file.Close()

	res, err := h.Roster.ImportStudents(c.Request.Context(), claims(c).UserID(), c.Param("id"), file)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) listStudents(c *gin.Context) {
	students, err := h.Roster.Students(c.Request.Context(), claims(c).UserID())
	if err != nil {
		h.fail(c, err)
		return
	}
	if students == nil {
		students = []roster.Student{}
	}
	c.JSON(http.StatusOK, gin.H{"students": students})
}

func (h *Handler) createStudent(c *gin.Context) {
	var in roster.StudentInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid student body")
		return
	}
	st, err := h.Roster.CreateStudent(c.Request.Context(), claims(c).UserID(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"student": st, "message": "Student added successfully"})
}

func (h *Handler) getStudent(c *gin.Context) {
	st, err := h.Roster.Student(c.Request.Context(), claims(c).UserID(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"student": st})
}

func (h *Handler) updateStudent(c *gin.Context) {
	var in roster.StudentInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid student body")
		return
	}
	st, err := h.Roster.UpdateStudent(c.Request.Context(), claims(c).UserID(), c.Param("id"), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"student": st, "message": "Student updated successfully"})
}

func (h *Handler) deleteStudent(c *gin.Context) {
	if err := h.Roster.DeleteStudent(c.Request.Context(), claims(c).UserID(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Student deleted successfully"})
}
