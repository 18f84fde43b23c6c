package merkle_test

import (
	"testing"

	"github.com/minichain/minichain/foundation/blockchain/merkle"
)

const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_Root(t *testing.T) {
	t.Log("Given the need to accumulate transaction ids into a root.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen handling ordered id sequences.", testID)
		{
			ids := []string{"aaa", "bbb", "ccc"}

			r1 := merkle.Root(ids)
			r2 := merkle.Root([]string{"aaa", "bbb", "ccc"})
			if r1 != r2 {
				t.Fatalf("\t%s\tTest %d:\tShould get the same root for the same sequence.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould get the same root for the same sequence.", success, testID)

			if r3 := merkle.Root([]string{"bbb", "aaa", "ccc"}); r3 == r1 {
				t.Fatalf("\t%s\tTest %d:\tShould get a different root when the order changes.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould get a different root when the order changes.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen handling an empty sequence.", testID)
		{
			if merkle.Root(nil) != merkle.EmptyRoot() {
				t.Fatalf("\t%s\tTest %d:\tShould get the empty root for no ids.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould get the empty root for no ids.", success, testID)

			if len(merkle.EmptyRoot()) != 64 {
				t.Fatalf("\t%s\tTest %d:\tShould get a 64 character empty root.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould get a 64 character empty root.", success, testID)
		}
	}
}
