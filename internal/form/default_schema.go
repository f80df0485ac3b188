package form

// DefaultSchema returns the built-in registration form used when no schema
// file is configured. It mirrors the standard new-student registration flow:
// student data, address and contact, parent data, education level, previous
// school, and document uploads.
func DefaultSchema() *Schema {
	return &Schema{
		Name:              "Pendaftaran Siswa Baru",
		MinConfirmPercent: 60,
		Steps: []StepConfig{
			{ID: "data_siswa", Name: "Data Siswa", Order: 1, Mandatory: true, Icon: "📋"},
			{ID: "data_kontak", Name: "Alamat & Kontak", Order: 2, Mandatory: true, Icon: "🏠"},
			{ID: "data_orang_tua", Name: "Data Orang Tua", Order: 3, Mandatory: true, Icon: "👪"},
			{ID: "data_pendidikan", Name: "Jenjang Pendidikan", Order: 4, Mandatory: true, Icon: "🎓"},
			{
				ID: "data_sekolah", Name: "Sekolah Asal", Order: 5, Mandatory: true, Icon: "🏫",
				// TK applicants have no previous school.
				SkipConditions: []SkipCondition{{FieldID: "jenjang_pendidikan", Values: []string{"TK"}}},
			},
			{ID: "dokumen", Name: "Upload Dokumen", Order: 6, Mandatory: true, Icon: "📎"},
		},
		Fields: []FieldConfig{
			{
				ID: "nama_lengkap", Label: "Nama Lengkap", StepID: "data_siswa",
				Type: FieldTypeText, Mandatory: true,
				Validation:      Validation{MinLength: 3, MaxLength: 100},
				Examples:        []string{"Ahmad Fauzi", "Siti Rahma"},
				ExtractKeywords: []string{"nama"},
			},
			{
				ID: "jenis_kelamin", Label: "Jenis Kelamin", StepID: "data_siswa",
				Type: FieldTypeSelect, Mandatory: true,
				Options: []FieldOption{
					{Value: "L", Label: "Laki-laki", Aliases: []string{"laki-laki", "laki laki", "pria", "cowok", "male"}},
					{Value: "P", Label: "Perempuan", Aliases: []string{"perempuan", "wanita", "cewek", "female"}},
				},
			},
			{
				ID: "tempat_lahir", Label: "Tempat Lahir", StepID: "data_siswa",
				Type: FieldTypeText, Mandatory: false,
				Examples: []string{"Jakarta", "Bandung"},
			},
			{
				ID: "tanggal_lahir", Label: "Tanggal Lahir", StepID: "data_siswa",
				Type: FieldTypeDate, Mandatory: true,
				Validation: Validation{MinAge: 3, MaxAge: 25},
				AutoFormats: []AutoFormat{
					{Pattern: `^\d{4}-\d{2}-\d{2}$`, ConvertTo: "DD/MM/YYYY"},
					{Pattern: `^\d{1,2}\s+\w+\s+\d{4}$`, ConvertTo: "DD/MM/YYYY"},
					{Pattern: `^\d{1,2}[-/]\d{1,2}[-/]\d{4}$`, ConvertTo: "DD/MM/YYYY"},
				},
				Examples: []string{"15/05/2015", "15 Mei 2015"},
				Tips:     "Gunakan format DD/MM/YYYY",
			},
			{
				ID: "alamat_lengkap", Label: "Alamat Lengkap", StepID: "data_kontak",
				Type: FieldTypeText, Mandatory: true,
				Validation: Validation{MinLength: 10, MaxLength: 300},
				Examples:   []string{"Jl. Merdeka No. 10, Jakarta Selatan"},
			},
			{
				ID: "nomor_hp", Label: "Nomor HP", StepID: "data_kontak",
				Type: FieldTypePhone, Mandatory: true, AutoClean: true,
				Validation: Validation{
					Pattern:      `^(0|\+62)\d{9,13}$`,
					ErrorMessage: "Nomor HP harus diawali 08 atau +62",
				},
				Examples: []string{"081234567890"},
			},
			{
				ID: "email", Label: "Email", StepID: "data_kontak",
				Type: FieldTypeEmail, Mandatory: false,
				Validation: Validation{
					Pattern:      `^[\w.+-]+@[\w-]+\.[\w.-]+$`,
					ErrorMessage: "Format email tidak valid",
				},
				Examples: []string{"orangtua@example.com"},
			},
			{
				ID: "nama_ayah", Label: "Nama Ayah", StepID: "data_orang_tua",
				Type: FieldTypeText, Mandatory: true,
				Validation: Validation{MinLength: 3, MaxLength: 100},
			},
			{
				ID: "nama_ibu", Label: "Nama Ibu", StepID: "data_orang_tua",
				Type: FieldTypeText, Mandatory: true,
				Validation: Validation{MinLength: 3, MaxLength: 100},
			},
			{
				ID: "pekerjaan_ayah", Label: "Pekerjaan Ayah", StepID: "data_orang_tua",
				Type: FieldTypeText, Mandatory: false,
			},
			{
				ID: "jenjang_pendidikan", Label: "Jenjang Pendidikan", StepID: "data_pendidikan",
				Type: FieldTypeSelect, Mandatory: true,
				Options: []FieldOption{
					{Value: "TK", Label: "Taman Kanak-kanak", Aliases: []string{"tk", "taman kanak", "paud"}},
					{Value: "SD", Label: "Sekolah Dasar", Aliases: []string{"sd", "sekolah dasar"}},
					{Value: "SMP", Label: "Sekolah Menengah Pertama", Aliases: []string{"smp", "sekolah menengah pertama"}},
					{Value: "SMA", Label: "Sekolah Menengah Atas", Aliases: []string{"sma", "sekolah menengah atas", "smk"}},
				},
				ExtractKeywords: []string{"jenjang", "tingkat", "level"},
			},
			{
				ID: "asal_sekolah", Label: "Asal Sekolah", StepID: "data_sekolah",
				Type: FieldTypeText, Mandatory: true,
				Validation: Validation{MinLength: 3, MaxLength: 150},
				Examples:   []string{"SDN 01 Menteng"},
			},
			{
				ID: "akta_kelahiran", Label: "Akta Kelahiran", StepID: "dokumen",
				Type: FieldTypeFile, Mandatory: true,
			},
			{
				ID: "kartu_keluarga", Label: "Kartu Keluarga", StepID: "dokumen",
				Type: FieldTypeFile, Mandatory: true,
			},
			{
				ID: "foto_siswa", Label: "Foto Siswa", StepID: "dokumen",
				Type: FieldTypeFile, Mandatory: true,
			},
			{
				ID: "ktp_ortu", Label: "KTP Orang Tua", StepID: "dokumen",
				Type: FieldTypeFile, Mandatory: false,
			},
			{
				ID: "ijazah_terakhir", Label: "Ijazah Terakhir", StepID: "dokumen",
				Type: FieldTypeFile, Mandatory: false,
			},
			{
				ID: "rapor_terakhir", Label: "Rapor Terakhir", StepID: "dokumen",
				Type: FieldTypeFile, Mandatory: false,
			},
			{
				ID: "bukti_pembayaran", Label: "Bukti Pembayaran", StepID: "dokumen",
				Type: FieldTypeFile, Mandatory: false,
			},
		},
		Commands: DefaultCommandRules(),
	}
}
