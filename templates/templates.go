// Package templates renders the runtime configuration of a project from embedded templates.
package templates

import (
	"bufio"
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/oar-cd/hound/domain"
	"gopkg.in/yaml.v3"
)

//go:embed files/docker-compose.yml files/bloodhound.config.json
var files embed.FS

const (
	composeTemplate       = "files/docker-compose.yml"
	serviceConfigTemplate = "files/bloodhound.config.json"

	gdsBegin = "# gds:begin"
	gdsEnd   = "# gds:end"
)

// Rendered holds the generated files of one project
type Rendered struct {
	Compose       []byte
	ServiceConfig []byte
}

// Render substitutes the port placeholders and drops the GDS plugin block when noGDS is set.
// Both outputs are parsed before being returned.
func Render(ports domain.Ports, noGDS bool) (*Rendered, error) {
	if err := ports.Validate(); err != nil {
		return nil, err
	}

	replacer := strings.NewReplacer(
		"{{BOLT_PORT}}", strconv.Itoa(ports.Bolt),
		"{{NEO4J_PORT}}", strconv.Itoa(ports.Neo4j),
		"{{WEB_PORT}}", strconv.Itoa(ports.Web),
	)

	composeSrc, err := files.ReadFile(composeTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to read compose template: %w", err)
	}
	configSrc, err := files.ReadFile(serviceConfigTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to read service config template: %w", err)
	}

	compose := stripGDS(composeSrc, noGDS)
	out := &Rendered{
		Compose:       []byte(replacer.Replace(string(compose))),
		ServiceConfig: []byte(replacer.Replace(string(configSrc))),
	}

	if err := validateCompose(out.Compose); err != nil {
		return nil, err
	}
	if err := validateServiceConfig(out.ServiceConfig); err != nil {
		return nil, err
	}
	return out, nil
}

// Write renders the configuration for p into its project directory
func Write(p *domain.Project) error {
	rendered, err := Render(p.Ports, p.NoGDS)
	if err != nil {
		return err
	}
	if err := os.WriteFile(p.ComposePath(), rendered.Compose, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", p.ComposePath(), err)
	}
	if err := os.WriteFile(p.ServiceConfigPath(), rendered.ServiceConfig, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", p.ServiceConfigPath(), err)
	}
	return nil
}

// stripGDS removes the marker lines, and everything between them when drop is set
func stripGDS(src []byte, drop bool) []byte {
	var out bytes.Buffer
	inBlock := false

	scanner := bufio.NewScanner(bytes.NewReader(src))
	for scanner.Scan() {
		line := scanner.Text()
		switch strings.TrimSpace(line) {
		case gdsBegin:
			inBlock = true
			continue
		case gdsEnd:
			inBlock = false
			continue
		}
		if inBlock && drop {
			continue
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}
	return out.Bytes()
}

type composeFile struct {
	Services map[string]struct {
		Image       string   `yaml:"image"`
		Environment []string `yaml:"environment"`
		Ports       []string `yaml:"ports"`
	} `yaml:"services"`
}

func validateCompose(data []byte) error {
	var cf composeFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return fmt.Errorf("rendered compose file is not valid YAML: %w", err)
	}
	for _, name := range []string{"app-db", "graph-db", "bloodhound"} {
		svc, ok := cf.Services[name]
		if !ok {
			return fmt.Errorf("rendered compose file has no %s service", name)
		}
		if svc.Image == "" {
			return fmt.Errorf("rendered compose service %s has no image", name)
		}
	}
	if bytes.Contains(data, []byte("{{")) {
		return fmt.Errorf("rendered compose file has unresolved placeholders")
	}
	return nil
}

func validateServiceConfig(data []byte) error {
	var cfg map[string]any
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("rendered service config is not valid JSON: %w", err)
	}
	if bytes.Contains(data, []byte("{{")) {
		return fmt.Errorf("rendered service config has unresolved placeholders")
	}
	return nil
}
