package languages

type ListLanguagesQuery struct {
	Limit   int     `query:"limit" json:"limit,omitempty" default:"100" validate:"min=1,max=1000"`
	Offset  int     `query:"offset" json:"offset,omitempty" validate:"min=0"`
	IsoCode *string `query:"iso_code" json:"iso_code,omitempty" validate:"omitempty,isocode"`
	InUse   bool    `query:"in_use" json:"in_use,omitempty"`
}
