package maven2

import (
	"testing"

	"repoconnector/spi"
)

func TestLocationFor_StandardCoordinates(t *testing.T) {
	l := New()
	got := l.LocationFor(spi.Coordinates{
		GroupID:    "org.example",
		ArtifactID: "widget",
		Version:    "1.2.3",
		Extension:  "jar",
	})
	want := "org/example/widget/1.2.3/widget-1.2.3.jar"
	if got != want {
		t.Errorf("LocationFor = %q, want %q", got, want)
	}
}

func TestLocationFor_WithClassifier(t *testing.T) {
	l := New()
	got := l.LocationFor(spi.Coordinates{
		GroupID:    "org.example",
		ArtifactID: "widget",
		Version:    "1.2.3",
		Classifier: "sources",
		Extension:  "jar",
	})
	want := "org/example/widget/1.2.3/widget-1.2.3-sources.jar"
	if got != want {
		t.Errorf("LocationFor = %q, want %q", got, want)
	}
}

func TestLocationFor_MetadataPath(t *testing.T) {
	l := New()
	got := l.LocationFor(spi.Coordinates{Path: "org/example/widget/maven-metadata.xml"})
	want := "org/example/widget/maven-metadata.xml"
	if got != want {
		t.Errorf("LocationFor = %q, want %q", got, want)
	}
}

func TestChecksumLocationsFor(t *testing.T) {
	l := New()
	locs := l.ChecksumLocationsFor("org/example/widget/1.2.3/widget-1.2.3.jar", []spi.Algorithm{{Name: "SHA-1", Extension: "sha1"}})
	if len(locs) != 1 {
		t.Fatalf("expected 1 location, got %d", len(locs))
	}
	if locs[0].URI != "org/example/widget/1.2.3/widget-1.2.3.jar.sha1" {
		t.Errorf("unexpected checksum URI: %s", locs[0].URI)
	}
}
