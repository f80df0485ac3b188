// Package classifier detects the document type of uploaded registration
// files. Detection runs in two stages: a filename heuristic first, then a
// vision analyzer for low-confidence image files.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/azhar-edu/regbot/internal/models"
	"github.com/azhar-edu/regbot/internal/util"
)

// VisionThreshold is the filename confidence below which an image file is
// re-examined by the vision analyzer.
const VisionThreshold = 0.6

// ImageAnalyzer is the vision collaborator used for low-confidence images.
// *genai.Client satisfies this interface.
type ImageAnalyzer interface {
	AnalyzeImage(ctx context.Context, image []byte, mediaType string, prompt string) (string, error)
}

// typePatterns holds the filename keyword patterns for one document type.
// Order matters: earlier entries win ties against later ones.
type typePatterns struct {
	docType  models.DocumentType
	patterns []*regexp.Regexp
}

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, regexp.MustCompile(e))
	}
	return out
}

var filenamePatterns = []typePatterns{
	{models.DocumentTypeAktaKelahiran, compileAll(`akta`, `kelahiran`, `birth`, `akte`, `lahir`)},
	{models.DocumentTypeKartuKeluarga, compileAll(`kk\b`, `kartu.?keluarga`, `family.?card`, `keluarga`)},
	{models.DocumentTypeKTPOrtu, compileAll(`ktp`, `identitas`, `id.?card`, `nik`, `ortu`, `ayah`, `ibu`, `orang.?tua`)},
	{models.DocumentTypeIjazahTerakhir, compileAll(`ijazah`, `diploma`, `certificate`, `sertifikat`, `lulus`, `kelulusan`)},
	{models.DocumentTypeRaporTerakhir, compileAll(`rapor`, `raport`, `report.?card`, `nilai`, `transkrip`)},
	{models.DocumentTypeFotoSiswa, compileAll(`foto`, `photo`, `pas.?foto`, `siswa`, `murid`, `anak`, `profile`)},
	{models.DocumentTypeBuktiBayar, compileAll(`bukti`, `bayar`, `payment`, `transfer`, `receipt`, `kwitansi`, `struk`)},
}

// fieldIDByType maps a detected document type to the form field it fills.
var fieldIDByType = map[models.DocumentType]string{
	models.DocumentTypeAktaKelahiran:  "akta_kelahiran",
	models.DocumentTypeKartuKeluarga:  "kartu_keluarga",
	models.DocumentTypeKTPOrtu:        "ktp_ortu",
	models.DocumentTypeIjazahTerakhir: "ijazah_terakhir",
	models.DocumentTypeRaporTerakhir:  "rapor_terakhir",
	models.DocumentTypeFotoSiswa:      "foto_siswa",
	models.DocumentTypeBuktiBayar:     "bukti_pembayaran",
}

var allowedExtensions = map[string]bool{
	".pdf":  true,
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

var imageMediaTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

const visionPrompt = `Analisis gambar dokumen ini dan tentukan jenisnya.

Pilih SATU dari kategori berikut:
1. akta_kelahiran - Akta kelahiran/surat keterangan lahir
2. kartu_keluarga - Kartu Keluarga (KK)
3. ktp_ortu - KTP (Kartu Tanda Penduduk)
4. ijazah_terakhir - Ijazah/sertifikat kelulusan
5. rapor_terakhir - Rapor/buku nilai
6. foto_siswa - Foto pas/foto profil
7. bukti_pembayaran - Bukti transfer/kwitansi
8. unknown - Tidak dapat diidentifikasi

Jawab dalam format JSON:
{"type": "kategori", "confidence": 0.0-1.0, "reason": "alasan singkat"}`

// Classifier detects document types for uploaded files.
type Classifier struct {
	analyzer ImageAnalyzer
}

// NewClassifier creates a classifier. The analyzer may be nil, in which case
// classification relies on filenames alone.
func NewClassifier(analyzer ImageAnalyzer) *Classifier {
	return &Classifier{analyzer: analyzer}
}

// FieldIDForType returns the form field a document type maps onto, or
// "document" for types without a dedicated field.
func FieldIDForType(t models.DocumentType) string {
	if id, ok := fieldIDByType[t]; ok {
		return id
	}
	return "document"
}

// ValidateUpload rejects files the pipeline cannot accept before any
// classification work is spent on them.
func ValidateUpload(f models.FileUpload) error {
	if len(f.Data) == 0 {
		return fmt.Errorf("%w: %s", models.ErrEmptyFile, f.Name)
	}
	if len(f.Data) > models.MaxUploadSizeBytes {
		return fmt.Errorf("%w: %s (%d bytes)", models.ErrFileTooLarge, f.Name, len(f.Data))
	}
	ext := strings.ToLower(filepath.Ext(f.Name))
	if !allowedExtensions[ext] {
		return fmt.Errorf("%w: %s", models.ErrUnsupportedFileType, f.Name)
	}
	return nil
}

var separatorRe = regexp.MustCompile(`[_\-.]`)

// cleanFilename lowercases the name, drops the extension, and turns
// separator characters into spaces so keyword patterns match naturally.
func cleanFilename(name string) string {
	base := strings.ToLower(filepath.Base(name))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return separatorRe.ReplaceAllString(base, " ")
}

// ClassifyByFilename scores a filename against the keyword table and returns
// the best-matching document type with its confidence. Each matched pattern
// scores independently, base 0.7 plus a specificity nudge for longer
// patterns capped at 0.95; the single best match wins.
func ClassifyByFilename(filename string) (models.DocumentType, float64) {
	cleaned := cleanFilename(filename)

	bestType := models.DocumentTypeUnknown
	bestScore := 0.0
	for _, tp := range filenamePatterns {
		for _, re := range tp.patterns {
			if !re.MatchString(cleaned) {
				continue
			}
			confidence := 0.7 + 0.1*float64(len(re.String()))/10
			if confidence > 0.95 {
				confidence = 0.95
			}
			if confidence > bestScore {
				bestScore = confidence
				bestType = tp.docType
			}
		}
	}
	return bestType, bestScore
}

// visionResponse is the JSON shape the vision prompt asks the model for.
type visionResponse struct {
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

// classifyByVision asks the vision analyzer to identify an image document.
// Non-image files and analyzer failures yield (unknown, 0).
func (c *Classifier) classifyByVision(ctx context.Context, f models.FileUpload) (models.DocumentType, float64) {
	if c.analyzer == nil {
		return models.DocumentTypeUnknown, 0.0
	}
	ext := strings.ToLower(filepath.Ext(f.Name))
	mediaType, ok := imageMediaTypes[ext]
	if !ok {
		return models.DocumentTypeUnknown, 0.0
	}

	raw, err := c.analyzer.AnalyzeImage(ctx, f.Data, mediaType, visionPrompt)
	if err != nil {
		slog.Warn("Classifier.classifyByVision: analyzer failed", "filename", f.Name, "error", err)
		return models.DocumentTypeUnknown, 0.0
	}

	var resp visionResponse
	if err := json.Unmarshal([]byte(extractJSON(raw)), &resp); err != nil {
		slog.Debug("Classifier.classifyByVision: unparsable analyzer output", "filename", f.Name, "error", err)
		return models.DocumentTypeUnknown, 0.0
	}
	docType := models.DocumentType(resp.Type)
	if _, known := models.DocumentTypeLabels[docType]; !known {
		return models.DocumentTypeUnknown, 0.0
	}
	return docType, resp.Confidence
}

// extractJSON trims prose or code fences around a JSON object in model output.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}

// ClassifySingle classifies one uploaded file. The filename heuristic runs
// first; when its confidence stays below VisionThreshold and the file is an
// image, the vision analyzer gets a chance and wins only with a strictly
// higher confidence.
func (c *Classifier) ClassifySingle(ctx context.Context, f models.FileUpload) models.ClassificationResult {
	docType, confidence := ClassifyByFilename(f.Name)
	method := models.DetectionFilename

	if confidence < VisionThreshold {
		if visionType, visionConf := c.classifyByVision(ctx, f); visionConf > confidence {
			docType = visionType
			confidence = visionConf
			method = models.DetectionVision
		}
	}

	fieldID := ""
	if docType != models.DocumentTypeUnknown {
		fieldID = FieldIDForType(docType)
	}
	return models.ClassificationResult{
		FileRef:    util.GenerateRandomID("doc_", 32),
		Filename:   f.Name,
		Type:       docType,
		FieldID:    fieldID,
		Confidence: confidence,
		Method:     method,
		Label:      docType.Label(),
	}
}

// ClassifyBatch classifies a set of files uploaded in a single message.
// Files are processed concurrently but results come back in input order.
// Invalid files fail the whole batch so the user can fix and resend.
func (c *Classifier) ClassifyBatch(ctx context.Context, files []models.FileUpload) ([]models.ClassificationResult, error) {
	if len(files) == 0 {
		return nil, nil
	}
	if len(files) > models.MaxBatchFiles {
		return nil, fmt.Errorf("%w: got %d, max %d", models.ErrTooManyFiles, len(files), models.MaxBatchFiles)
	}
	for _, f := range files {
		if err := ValidateUpload(f); err != nil {
			return nil, err
		}
	}

	results := make([]models.ClassificationResult, len(files))
	var wg sync.WaitGroup
	for i, f := range files {
		wg.Add(1)
		go func(i int, f models.FileUpload) {
			defer wg.Done()
			results[i] = c.ClassifySingle(ctx, f)
		}(i, f)
	}
	wg.Wait()

	slog.Debug("Classifier.ClassifyBatch: batch classified", "files", len(files))
	return results, nil
}

// GroupByField buckets classification results by the form field they fill.
// Unknown results land under the empty key.
func GroupByField(results []models.ClassificationResult) map[string][]models.ClassificationResult {
	grouped := make(map[string][]models.ClassificationResult)
	for _, r := range results {
		grouped[r.FieldID] = append(grouped[r.FieldID], r)
	}
	return grouped
}
