package normalize

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// IdentityMap es la referencia externa de identidades: traduce naming del
// proveedor a identidades canónicas ANTES de que el resto del pipeline vea
// los datos. Downstream nunca maneja nombres crudos del proveedor.
type IdentityMap struct {
	Players map[string]string `yaml:"players"`
	Books   map[string]string `yaml:"books"`
	Teams   map[string]string `yaml:"teams"`
}

// LoadIdentityMap carga el identity map YAML. Una ruta vacía devuelve un map
// vacío (modo passthrough).
func LoadIdentityMap(path string) (*IdentityMap, error) {
	im := &IdentityMap{
		Players: map[string]string{},
		Books:   map[string]string{},
		Teams:   map[string]string{},
	}
	if path == "" {
		return im, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("normalize.LoadIdentityMap: read %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, im); err != nil {
		return nil, fmt.Errorf("normalize.LoadIdentityMap: parse %q: %w", path, err)
	}
	if im.Players == nil {
		im.Players = map[string]string{}
	}
	if im.Books == nil {
		im.Books = map[string]string{}
	}
	if im.Teams == nil {
		im.Teams = map[string]string{}
	}
	return im, nil
}

// ResolvePlayer devuelve la identidad canónica del jugador y si quedó
// resuelta. Con un map vacío se confía en el naming del proveedor.
func (im *IdentityMap) ResolvePlayer(raw string) (string, bool) {
	cleaned := cleanName(raw)
	if mapped, ok := im.Players[cleaned]; ok {
		return mapped, true
	}
	if len(im.Players) == 0 {
		return cleaned, true
	}
	return cleaned, false
}

// ResolveBook normaliza la clave del bookmaker.
func (im *IdentityMap) ResolveBook(raw string) string {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	if mapped, ok := im.Books[cleaned]; ok {
		return mapped
	}
	return cleaned
}

// cleanName colapsa espacios y recorta; la comparación de jugadores es
// sensible a mayúsculas porque el proveedor ya las trae consistentes.
func cleanName(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}
