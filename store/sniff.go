package store

import (
	"archive/zip"
	"strings"

	"github.com/modsentry/orchestrator/types"
)

// sniffFileType inspects a zip archive's entries and classifies it. Order
// matters: APK and IPA signatures are checked before falling back to plain
// zip, since both are zip containers with an additional marker entry.
func sniffFileType(zr *zip.Reader) types.FileType {
	var hasManifest, hasPayloadApp, hasInfoPlist bool

	for _, f := range zr.File {
		name := f.Name
		switch {
		case name == "AndroidManifest.xml":
			hasManifest = true
		case strings.HasPrefix(name, "Payload/") && strings.Contains(name, ".app/"):
			hasPayloadApp = true
		case strings.HasSuffix(name, ".app/Info.plist"):
			hasInfoPlist = true
		}
	}

	switch {
	case hasManifest:
		return types.FileTypeAPK
	case hasPayloadApp && hasInfoPlist:
		return types.FileTypeIPA
	default:
		return types.FileTypeZip
	}
}
