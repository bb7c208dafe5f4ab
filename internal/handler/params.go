package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/prephub/contests/internal/domain"
)

// pathID parses a UUID path parameter, answering 400 when it is malformed
func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		respondError(c, domain.NewDomainError(domain.ErrBadRequest, "Invalid "+name))
		return uuid.Nil, false
	}
	return id, true
}
