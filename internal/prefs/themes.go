package prefs

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ThemeColors is the palette a theme applies to every surface.
type ThemeColors struct {
	Background    string `json:"background" yaml:"background"`
	Surface       string `json:"surface" yaml:"surface"`
	Primary       string `json:"primary" yaml:"primary"`
	Secondary     string `json:"secondary" yaml:"secondary"`
	Text          string `json:"text" yaml:"text"`
	TextSecondary string `json:"textSecondary" yaml:"textSecondary"`
	Accent        string `json:"accent" yaml:"accent"`
	Error         string `json:"error" yaml:"error"`
}

// Theme is a named palette.
type Theme struct {
	ID     string      `json:"id" yaml:"id"`
	Name   string      `json:"name" yaml:"name"`
	Colors ThemeColors `json:"colors" yaml:"colors"`
}

var builtinThemes = []Theme{
	{ID: "dark", Name: "Dark Theme", Colors: ThemeColors{
		Background: "#2c2c2c", Surface: "#363636", Primary: "#7289da", Secondary: "#4f545c",
		Text: "#ffffff", TextSecondary: "#999999", Accent: "#43b581", Error: "#f04747",
	}},
	{ID: "dracula", Name: "Dracula", Colors: ThemeColors{
		Background: "#282a36", Surface: "#44475a", Primary: "#bd93f9", Secondary: "#6272a4",
		Text: "#f8f8f2", TextSecondary: "#a7aab7", Accent: "#50fa7b", Error: "#ff5555",
	}},
	{ID: "monokai", Name: "Monokai Dark", Colors: ThemeColors{
		Background: "#272822", Surface: "#3e3d32", Primary: "#a6e22e", Secondary: "#49483e",
		Text: "#f8f8f2", TextSecondary: "#a59f85", Accent: "#66d9ef", Error: "#f92672",
	}},
	{ID: "nord", Name: "Nord Dark", Colors: ThemeColors{
		Background: "#2e3440", Surface: "#3b4252", Primary: "#88c0d0", Secondary: "#4c566a",
		Text: "#eceff4", TextSecondary: "#d8dee9", Accent: "#a3be8c", Error: "#bf616a",
	}},
	{ID: "github-dark", Name: "GitHub Dark", Colors: ThemeColors{
		Background: "#0d1117", Surface: "#161b22", Primary: "#58a6ff", Secondary: "#30363d",
		Text: "#c9d1d9", TextSecondary: "#8b949e", Accent: "#238636", Error: "#f85149",
	}},
	{ID: "light", Name: "Light Theme", Colors: ThemeColors{
		Background: "#ffffff", Surface: "#f5f5f5", Primary: "#5865f2", Secondary: "#e3e5e8",
		Text: "#2c2c2c", TextSecondary: "#666666", Accent: "#3ba55c", Error: "#ed4245",
	}},
}

// BuiltinThemes returns the themes that ship with the app. The first one is
// the fallback for unknown theme ids.
func BuiltinThemes() []Theme {
	out := make([]Theme, len(builtinThemes))
	copy(out, builtinThemes)
	return out
}

// themesFile is the YAML layout for extra themes.
type themesFile struct {
	Themes []Theme `yaml:"themes"`
}

// LoadThemesFile reads extra themes from a YAML file of the form
//
//	themes:
//	  - id: solarized
//	    name: Solarized
//	    colors: {background: "#002b36", ...}
func LoadThemesFile(path string) ([]Theme, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("prefs: read themes: %w", err)
	}
	var f themesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("prefs: parse themes %s: %w", path, err)
	}
	for i, t := range f.Themes {
		if t.ID == "" {
			return nil, fmt.Errorf("prefs: theme %d in %s has no id", i, path)
		}
		if t.Name == "" {
			f.Themes[i].Name = t.ID
		}
	}
	return f.Themes, nil
}
