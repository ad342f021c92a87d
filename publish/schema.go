package publish

import (
	"path"
	"slices"
)

// DateLayout is the format of VersionInfo.VersionDate.
const DateLayout = "2006-01-02 15:04:05"

// Distribution tags for files that only belong to one side.
const (
	DistServer = "server"
	DistClient = "client"
)

// ModpackFile is one entry of modpack.json.
type ModpackFile struct {
	// File is the slash-separated path relative to the source directory.
	File string `json:"file"`

	// Hash is the SHA-256 hex digest of the uncompressed file.
	Hash string `json:"hash"`

	// Link is the download URL of the content object.
	Link string `json:"link"`

	// Size is the uncompressed file size in bytes.
	Size int64 `json:"size"`

	// Dist is DistServer, DistClient or empty for files used by both.
	Dist string `json:"dist,omitempty"`

	// Compressed is set when the object is stored zlib-compressed.
	Compressed bool `json:"compressed"`
}

// Modpack is the document stored as modpack.json for a single version.
type Modpack struct {
	Version   string            `json:"version"`
	Libraries map[string]string `json:"libraries"`
	Files     []ModpackFile     `json:"files"`
}

// VersionInfo describes one published version.
type VersionInfo struct {
	VersionName   string `json:"versionName"`
	VersionDate   string `json:"versionDate"`
	PackFilePath  string `json:"packFilePath"`
	ChangelogPath string `json:"changelogPath"`
}

// VersionList is the document stored as versions.json.
type VersionList struct {
	Versions []VersionInfo `json:"versions"`
}

// Contains reports whether a version with the given name is listed.
func (l *VersionList) Contains(name string) bool {
	return slices.ContainsFunc(l.Versions, func(v VersionInfo) bool {
		return v.VersionName == name
	})
}

// ModpackMeta is the document stored as meta.json.
type ModpackMeta struct {
	VersionsPath  string      `json:"versionsPath"`
	LatestVersion VersionInfo `json:"latestVersion"`
}

// Object keys of the metadata documents.

func projectRoot(projectID string) string {
	return path.Join("stable", projectID)
}

// VersionsKey returns the key of versions.json for a project.
func VersionsKey(projectID string) string {
	return path.Join(projectRoot(projectID), "versions.json")
}

// MetaKey returns the key of meta.json for a project.
func MetaKey(projectID string) string {
	return path.Join(projectRoot(projectID), "meta.json")
}

// ModpackKey returns the key of modpack.json for a version.
func ModpackKey(projectID, versionName string) string {
	return path.Join(projectRoot(projectID), "versions", versionName, "modpack.json")
}

// ChangelogKey returns the key a version's changelog is expected at.
func ChangelogKey(projectID, versionName string) string {
	return path.Join(projectRoot(projectID), "versions", versionName, "changelog.json")
}
