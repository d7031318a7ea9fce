package sources

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Variable maps a short variable code to the THREDDS dataset that carries it.
type Variable struct {
	Path        string `yaml:"path"`
	Name        string `yaml:"name"`
	Units       string `yaml:"units"`
	Description string `yaml:"description"`
}

// Source is a remote archive exposing a NetCDF subset service.
type Source struct {
	BaseURL   string              `yaml:"baseUrl"`
	Epoch     string              `yaml:"epoch"`
	Variables map[string]Variable `yaml:"variables"`
}

// EpochTime returns the reference date the source counts its days from.
func (s Source) EpochTime() time.Time {
	t, err := time.Parse("2006-01-02", s.Epoch)
	if err != nil {
		return time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return t
}

type Catalog struct {
	Sources map[string]Source `yaml:"sources"`
}

// Default returns the built-in catalog for GridMet and TopoWX.
func Default() Catalog {
	return Catalog{
		Sources: map[string]Source{
			"gridmet": {
				BaseURL: "http://thredds.northwestknowledge.net:8080/thredds/ncss",
				Epoch:   "1900-01-01",
				Variables: map[string]Variable{
					"pr":   {Path: "agg_met_pr_1979_CurrentYear_CONUS.nc", Name: "precipitation_amount", Units: "mm", Description: "daily accumulated precipitation"},
					"tmmx": {Path: "agg_met_tmmx_1979_CurrentYear_CONUS.nc", Name: "daily_maximum_temperature", Units: "K", Description: "daily maximum temperature"},
					"tmmn": {Path: "agg_met_tmmn_1979_CurrentYear_CONUS.nc", Name: "daily_minimum_temperature", Units: "K", Description: "daily minimum temperature"},
					"etr":  {Path: "agg_met_etr_1979_CurrentYear_CONUS.nc", Name: "daily_mean_reference_evapotranspiration_alfalfa", Units: "mm", Description: "alfalfa reference evapotranspiration"},
					"pet":  {Path: "agg_met_pet_1979_CurrentYear_CONUS.nc", Name: "daily_mean_reference_evapotranspiration_grass", Units: "mm", Description: "grass reference evapotranspiration"},
					"srad": {Path: "agg_met_srad_1979_CurrentYear_CONUS.nc", Name: "daily_mean_shortwave_radiation_at_surface", Units: "W m-2", Description: "downward shortwave radiation"},
					"vs":   {Path: "agg_met_vs_1979_CurrentYear_CONUS.nc", Name: "daily_mean_wind_speed", Units: "m s-1", Description: "wind speed at 10 m"},
					"sph":  {Path: "agg_met_sph_1979_CurrentYear_CONUS.nc", Name: "daily_mean_specific_humidity", Units: "kg kg-1", Description: "specific humidity"},
					"rmax": {Path: "agg_met_rmax_1979_CurrentYear_CONUS.nc", Name: "daily_maximum_relative_humidity", Units: "%", Description: "daily maximum relative humidity"},
					"rmin": {Path: "agg_met_rmin_1979_CurrentYear_CONUS.nc", Name: "daily_minimum_relative_humidity", Units: "%", Description: "daily minimum relative humidity"},
				},
			},
			"topowx": {
				BaseURL: "https://cida.usgs.gov/thredds/ncss",
				Epoch:   "1948-01-01",
				Variables: map[string]Variable{
					"tmin": {Path: "topowx", Name: "tmin", Units: "C", Description: "daily minimum temperature"},
					"tmax": {Path: "topowx", Name: "tmax", Units: "C", Description: "daily maximum temperature"},
				},
			},
		},
	}
}

// Load reads a user catalog and merges it over the built-in defaults. A
// missing path returns the defaults unchanged.
func Load(path string) (Catalog, error) {
	catalog := Default()

	if path == "" {
		return catalog, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return catalog, fmt.Errorf("unable to read sources catalog %s (%w)", path, err)
	}

	overlay := Catalog{}
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return catalog, fmt.Errorf("unable to parse sources catalog %s (%w)", path, err)
	}

	for name, src := range overlay.Sources {
		base, ok := catalog.Sources[name]
		if !ok {
			catalog.Sources[name] = src
			continue
		}
		if src.BaseURL != "" {
			base.BaseURL = src.BaseURL
		}
		if src.Epoch != "" {
			base.Epoch = src.Epoch
		}
		for code, v := range src.Variables {
			base.Variables[code] = v
		}
		catalog.Sources[name] = base
	}

	return catalog, nil
}

// Lookup resolves a source/variable pair, with an error naming the known
// alternatives when the pair is not in the catalog.
func (c Catalog) Lookup(source, variable string) (Source, Variable, error) {
	src, ok := c.Sources[source]
	if !ok {
		return Source{}, Variable{}, fmt.Errorf("source %s not in supported set [%s]", source, strings.Join(c.sourceNames(), ", "))
	}

	v, ok := src.Variables[variable]
	if !ok {
		codes := make([]string, 0, len(src.Variables))
		for code := range src.Variables {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		return Source{}, Variable{}, fmt.Errorf("variable %s not in supported set [%s] for source %s", variable, strings.Join(codes, ", "), source)
	}

	return src, v, nil
}

func (c Catalog) sourceNames() []string {
	names := make([]string, 0, len(c.Sources))
	for name := range c.Sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
