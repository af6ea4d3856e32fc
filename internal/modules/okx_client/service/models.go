package service

// positionRow is the subset of /api/v5/account/positions the engine reads.
type positionRow struct {
	InstID         string `json:"instId"`
	InstType       string `json:"instType"`
	MgnMode        string `json:"mgnMode"`
	PosSide        string `json:"posSide"`
	Pos            string `json:"pos"`
	AvgPx          string `json:"avgPx"`
	Last           string `json:"last"`
	MarkPx         string `json:"markPx"`
	Upl            string `json:"upl"`
	UplLastPx      string `json:"uplLastPx"`
	UplRatio       string `json:"uplRatio"`
	UplRatioLastPx string `json:"uplRatioLastPx"`
	Imr            string `json:"imr"`
	Margin         string `json:"margin"`
	Lever          string `json:"lever"`
	CTime          string `json:"cTime"`
}

type balanceRow struct {
	TotalEq string `json:"totalEq"`
	AdjEq   string `json:"adjEq"`
	Imr     string `json:"imr"`
	Details []struct {
		Ccy       string `json:"ccy"`
		Eq        string `json:"eq"`
		AvailBal  string `json:"availBal"`
		AvailEq   string `json:"availEq"`
		FrozenBal string `json:"frozenBal"`
	} `json:"details"`
}

type instrumentRow struct {
	InstID    string `json:"instId"`
	TickSz    string `json:"tickSz"`
	LotSz     string `json:"lotSz"`
	MinSz     string `json:"minSz"`
	CtVal     string `json:"ctVal"`
	CtMult    string `json:"ctMult"`
	State     string `json:"state"`
	MaxMktSz  string `json:"maxMktSz"`
	CtType    string `json:"ctType"`
	SettleCcy string `json:"settleCcy"`
}

type orderRow struct {
	OrdID   string `json:"ordId"`
	ClOrdID string `json:"clOrdId"`
	SCode   string `json:"sCode"`
	SMsg    string `json:"sMsg"`
}
