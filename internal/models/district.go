package models

type DistrictTranslation struct {
	Name string `json:"name"`
}

type District struct {
	ID           int64                          `json:"id"`
	Translations map[string]DistrictTranslation `json:"translations"`
	Order        int                            `json:"order"`
	IsActive     bool                           `json:"is_active"`
}

// Name returns the district name in lang, falling back to Russian and then "N/A".
func (d District) Name(lang string) string {
	if t, ok := d.Translations[lang]; ok && t.Name != "" {
		return t.Name
	}
	if t, ok := d.Translations["ru"]; ok && t.Name != "" {
		return t.Name
	}
	return "N/A"
}

type DistrictInput struct {
	Translations map[string]DistrictTranslation `json:"translations"`
	Order        int                            `json:"order"`
	IsActive     bool                           `json:"is_active"`
}

// DistrictForm is the flat form shape of DistrictInput.
type DistrictForm struct {
	NameRU   string `form:"name_ru" json:"name_ru" binding:"required"`
	NameUZ   string `form:"name_uz" json:"name_uz"`
	NameKAA  string `form:"name_kaa" json:"name_kaa"`
	NameEN   string `form:"name_en" json:"name_en"`
	Order    int    `form:"order" json:"order" binding:"gte=0"`
	IsActive bool   `form:"is_active" json:"is_active"`
}

func (f DistrictForm) Input() DistrictInput {
	in := DistrictInput{
		Translations: map[string]DistrictTranslation{"ru": {Name: f.NameRU}},
		Order:        f.Order,
		IsActive:     f.IsActive,
	}
	for lang, name := range map[string]string{"uz": f.NameUZ, "kaa": f.NameKAA, "en": f.NameEN} {
		if name != "" {
			in.Translations[lang] = DistrictTranslation{Name: name}
		}
	}
	return in
}
