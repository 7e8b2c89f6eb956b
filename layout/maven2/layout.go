// Package maven2 is the default spi.Layout: the conventional Maven2
// repository directory structure, group-id-as-path with dots replaced by
// slashes, artifact-version directories, and a checksum sidecar per
// algorithm extension.
package maven2

import (
	"strings"

	"repoconnector/spi"
)

type Layout struct{}

func New() Layout { return Layout{} }

func (Layout) LocationFor(c spi.Coordinates) string {
	if c.Path != "" {
		return c.Path
	}

	groupPath := strings.ReplaceAll(c.GroupID, ".", "/")
	filename := c.ArtifactID + "-" + c.Version
	if c.Classifier != "" {
		filename += "-" + c.Classifier
	}
	ext := c.Extension
	if ext == "" {
		ext = "jar"
	}
	filename += "." + ext

	return strings.Join([]string{groupPath, c.ArtifactID, c.Version, filename}, "/")
}

func (Layout) ChecksumLocationsFor(resourceURI string, algorithms []spi.Algorithm) []spi.ChecksumLocation {
	locations := make([]spi.ChecksumLocation, 0, len(algorithms))
	for _, algo := range algorithms {
		locations = append(locations, spi.ChecksumLocation{
			Algorithm: algo,
			URI:       resourceURI + "." + algo.Extension,
		})
	}
	return locations
}
