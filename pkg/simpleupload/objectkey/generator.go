package objectkey

import (
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// AccessRole decides whether an object lives under the public or private prefix.
// RoleGuest is public; any other role is treated as authenticated.
type AccessRole string

const (
	RoleGuest AccessRole = "GUEST"

	PublicPrefix  = "public"
	PrivatePrefix = "private"

	DefaultFolder = "uploads"
)

// Visibility returns the top-level key prefix for the given role.
func Visibility(role AccessRole) string {
	if role == "" || role == RoleGuest {
		return PublicPrefix
	}
	return PrivatePrefix
}

// Generator derives storage keys for server-initiated creates and copies:
//
//	{public|private}/{folder}/{uuid}-{slug(filename)}
type Generator struct {
	// DefaultFolder is used when the caller gives no usable folder
	DefaultFolder string

	// NewID returns the unique component of each key (default: uuid.New)
	NewID func() uuid.UUID
}

func NewGenerator() *Generator {
	return &Generator{
		DefaultFolder: DefaultFolder,
		NewID:         uuid.New,
	}
}

// GenerateKey builds a new, collision free key for fileName.
func (g *Generator) GenerateKey(role AccessRole, folder, fileName string) string {
	newID := g.NewID
	if newID == nil {
		newID = uuid.New
	}
	return fmt.Sprintf("%s/%s/%s-%s", Visibility(role), g.normalizeFolder(folder), newID(), Slugify(fileName))
}

// normalizeFolder slugs each path segment and drops empty ones.
func (g *Generator) normalizeFolder(folder string) string {
	var parts []string
	for _, segment := range strings.Split(folder, "/") {
		if s := slug.Make(segment); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		if g.DefaultFolder != "" {
			return g.DefaultFolder
		}
		return DefaultFolder
	}
	return strings.Join(parts, "/")
}

// BaseName returns the filename portion of a derived key without its uuid prefix.
//
//	BaseName("public/uploads/6f1c...-report.pdf") // "report.pdf"
func BaseName(key string) string {
	name := path.Base(key)
	if name == "." || name == "/" {
		return ""
	}
	const idLen = 36
	if len(name) > idLen+1 && name[idLen] == '-' {
		if _, err := uuid.Parse(name[:idLen]); err == nil {
			return name[idLen+1:]
		}
	}
	return name
}
