package syncer

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/vietddude/ledgersync/internal/core/domain"
)

func TestKindDocuments(t *testing.T) {
	g := goldie.New(t)

	for _, k := range Battery(domain.RoleTournament, true) {
		scope := ""
		if k.Name() == KindParticipants {
			scope = "t-42"
		}
		g.Assert(t, "document_"+k.Name(), []byte(k.Document(scope)))
	}
	g.Assert(t, "document_subscribe", []byte(SubscribeDocument()))
}
