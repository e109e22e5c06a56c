// Package domain provides core domain types and entities for Hound.
package domain

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gosimple/slug"
)

const (
	// Files kept inside every project directory
	ComposeFileName       = "docker-compose.yml"
	ServiceConfigFileName = "bloodhound.config.json"
	LogFileName           = "runtime.log"
	StateFileName         = "state.json"

	DefaultBoltPort  = 7687
	DefaultNeo4jPort = 7474
	DefaultWebPort   = 8080

	// PasswordSymbols is the set of symbols accepted by the BloodHound password policy
	PasswordSymbols = "!?:-+,;.@#$%^&*<>"

	MinPasswordLength = 12
)

var (
	upperPattern = regexp.MustCompile(`[A-Z]`)
	lowerPattern = regexp.MustCompile(`[a-z]`)
	digitPattern = regexp.MustCompile(`[0-9]`)
)

// Ports holds the host ports published by a project's containers
type Ports struct {
	Bolt  int `json:"bolt"`
	Neo4j int `json:"neo4j"`
	Web   int `json:"web"`
}

// DefaultPorts returns the ports BloodHound uses out of the box
func DefaultPorts() Ports {
	return Ports{Bolt: DefaultBoltPort, Neo4j: DefaultNeo4jPort, Web: DefaultWebPort}
}

// List returns the ports in a fixed order: bolt, neo4j, web
func (p Ports) List() []int {
	return []int{p.Bolt, p.Neo4j, p.Web}
}

// Validate checks that every port is a usable TCP port and that no two are equal
func (p Ports) Validate() error {
	names := []string{"bolt", "neo4j", "web"}
	seen := make(map[int]string, 3)
	for i, port := range p.List() {
		if port < 1 || port > 65535 {
			return fmt.Errorf("%w: %s port %d is outside 1-65535", ErrInvalidPorts, names[i], port)
		}
		if other, ok := seen[port]; ok {
			return fmt.Errorf("%w: %s and %s ports are both %d", ErrInvalidPorts, other, names[i], port)
		}
		seen[port] = names[i]
	}
	return nil
}

// Overlaps returns the ports present in both p and other
func (p Ports) Overlaps(other Ports) []int {
	var shared []int
	for _, a := range p.List() {
		for _, b := range other.List() {
			if a == b {
				shared = append(shared, a)
			}
		}
	}
	return shared
}

// Project is a BloodHound instance managed by Hound. Its directory holds the
// generated runtime configuration, the runtime log and the state snapshot.
type Project struct {
	Name            string
	SourceDirectory string
	Ports           Ports
	Password        string
	Timeout         time.Duration
	NoGDS           bool
	State           LifecycleState

	// Populated after authentication
	UserID       string
	SessionToken string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewProject creates a project in the Unconfigured state
func NewProject(name, sourceDirectory string, ports Ports, password string, timeout time.Duration, noGDS bool) *Project {
	return &Project{
		Name:            name,
		SourceDirectory: sourceDirectory,
		Ports:           ports,
		Password:        password,
		Timeout:         timeout,
		NoGDS:           noGDS,
		State:           StateUnconfigured,
	}
}

// Dir is the project directory
func (p *Project) Dir() string {
	return filepath.Join(p.SourceDirectory, p.Name)
}

func (p *Project) ComposePath() string {
	return filepath.Join(p.Dir(), ComposeFileName)
}

func (p *Project) ServiceConfigPath() string {
	return filepath.Join(p.Dir(), ServiceConfigFileName)
}

func (p *Project) LogPath() string {
	return filepath.Join(p.Dir(), LogFileName)
}

func (p *Project) StatePath() string {
	return filepath.Join(p.Dir(), StateFileName)
}

// BaseURL is where the BloodHound web service listens
func (p *Project) BaseURL() string {
	return fmt.Sprintf("http://localhost:%d", p.Ports.Web)
}

// ComposeName is the Docker Compose project name. Compose only accepts
// lowercase alphanumerics, dashes and underscores.
func (p *Project) ComposeName() string {
	return "hound-" + slug.Make(p.Name)
}

// SameRuntimeConfig reports whether two projects would render identical runtime configuration
func (p *Project) SameRuntimeConfig(other *Project) bool {
	return p.Ports == other.Ports && p.NoGDS == other.NoGDS
}

// ValidateName rejects names that cannot be used as a single directory component
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	switch {
	case trimmed == "":
		return fmt.Errorf("%w: name is required", ErrInvalidProject)
	case trimmed != name:
		return fmt.Errorf("%w: name %q has surrounding whitespace", ErrInvalidProject, name)
	case name == "." || name == "..":
		return fmt.Errorf("%w: name %q is reserved", ErrInvalidProject, name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: name %q contains a path separator", ErrInvalidProject, name)
	case slug.Make(name) == "":
		return fmt.Errorf("%w: name %q has no usable characters", ErrInvalidProject, name)
	}
	return nil
}

// ValidatePassword enforces the BloodHound password complexity policy
func ValidatePassword(password string) error {
	var missing []string
	if utf8.RuneCountInString(password) < MinPasswordLength {
		missing = append(missing, fmt.Sprintf("at least %d characters", MinPasswordLength))
	}
	if !upperPattern.MatchString(password) {
		missing = append(missing, "an uppercase letter")
	}
	if !lowerPattern.MatchString(password) {
		missing = append(missing, "a lowercase letter")
	}
	if !digitPattern.MatchString(password) {
		missing = append(missing, "a digit")
	}
	if !strings.ContainsAny(password, PasswordSymbols) {
		missing = append(missing, "a symbol from "+PasswordSymbols)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: needs %s", ErrInvalidPassword, strings.Join(missing, ", "))
	}
	return nil
}

// GeneratePassword returns a random password that satisfies ValidatePassword
func GeneratePassword(length int) (string, error) {
	if length < MinPasswordLength {
		length = MinPasswordLength
	}

	const (
		upper  = "ABCDEFGHJKLMNPQRSTUVWXYZ"
		lower  = "abcdefghijkmnopqrstuvwxyz"
		digits = "23456789"
	)
	classes := []string{upper, lower, digits, PasswordSymbols}
	all := strings.Join(classes, "")

	out := make([]byte, 0, length)
	for _, class := range classes {
		c, err := randomChar(class)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}
	for len(out) < length {
		c, err := randomChar(all)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}

	// Shuffle so the class order is not predictable
	for i := len(out) - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", err
		}
		out[i], out[j.Int64()] = out[j.Int64()], out[i]
	}

	return string(out), nil
}

func randomChar(set string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(set))))
	if err != nil {
		return 0, fmt.Errorf("failed to generate random password: %w", err)
	}
	return set[n.Int64()], nil
}
