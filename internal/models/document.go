// Package models defines document classification types.
package models

// DocumentType enumerates the document categories the classifier can detect.
type DocumentType string

const (
	DocumentTypeAktaKelahiran  DocumentType = "akta_kelahiran"
	DocumentTypeKartuKeluarga  DocumentType = "kartu_keluarga"
	DocumentTypeKTPOrtu        DocumentType = "ktp_ortu"
	DocumentTypeIjazahTerakhir DocumentType = "ijazah_terakhir"
	DocumentTypeRaporTerakhir  DocumentType = "rapor_terakhir"
	DocumentTypeFotoSiswa      DocumentType = "foto_siswa"
	DocumentTypeBuktiBayar     DocumentType = "bukti_pembayaran"
	DocumentTypeUnknown        DocumentType = "unknown"
)

// DocumentTypeLabels maps document types to user-facing Indonesian labels.
var DocumentTypeLabels = map[DocumentType]string{
	DocumentTypeAktaKelahiran:  "Akta Kelahiran",
	DocumentTypeKartuKeluarga:  "Kartu Keluarga",
	DocumentTypeKTPOrtu:        "KTP Orang Tua",
	DocumentTypeIjazahTerakhir: "Ijazah Terakhir",
	DocumentTypeRaporTerakhir:  "Rapor Terakhir",
	DocumentTypeFotoSiswa:      "Foto Siswa",
	DocumentTypeBuktiBayar:     "Bukti Pembayaran",
	DocumentTypeUnknown:        "Tidak Dikenali",
}

// Label returns the user-facing label for the document type.
func (d DocumentType) Label() string {
	if l, ok := DocumentTypeLabels[d]; ok {
		return l
	}
	return string(d)
}

// DetectionMethod records how a classification result was produced.
type DetectionMethod string

const (
	// DetectionFilename means the filename heuristic matched.
	DetectionFilename DetectionMethod = "filename"
	// DetectionVision means the vision collaborator classified the image.
	DetectionVision DetectionMethod = "vision"
)

// ClassificationResult is the per-file output of the document classifier.
// It is consumed immediately to update a session and is not persisted as
// its own entity.
type ClassificationResult struct {
	FileRef    string          `json:"file_ref"`
	Filename   string          `json:"filename"`
	Type       DocumentType    `json:"type"`
	FieldID    string          `json:"field_id,omitempty"` // mapped form field, empty for unknown
	Confidence float64         `json:"confidence"`
	Method     DetectionMethod `json:"method"`
	Label      string          `json:"label"`
}
