package serve

import (
	"testing"

	"github.com/ValentinKolb/aodb/lib/feed"
	"github.com/ValentinKolb/aodb/rpc/common"
)

func TestParseShards(t *testing.T) {
	kp, err := feed.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair failed: %v", err)
	}
	hexKey := kp.Public.String()

	tests := map[string]struct {
		list    string
		want    []common.ServerShard
		wantErr bool
	}{
		"defaults": {
			list: "default=store,locks=lockmgr",
			want: []common.ServerShard{
				{Name: "default", ShardID: common.ShardID("default"), Type: common.ShardTypeStore},
				{Name: "locks", ShardID: common.ShardID("locks"), Type: common.ShardTypeLockManager},
			},
		},
		"replica": {
			list: "mirror=store(" + hexKey + ")",
			want: []common.ServerShard{
				{Name: "mirror", ShardID: common.ShardID("mirror"), Type: common.ShardTypeStore, Key: hexKey},
			},
		},
		"spaces": {
			list: " users = store ",
			want: []common.ServerShard{
				{Name: "users", ShardID: common.ShardID("users"), Type: common.ShardTypeStore},
			},
		},
		"missing type":  {list: "users", wantErr: true},
		"missing name":  {list: "=store", wantErr: true},
		"unknown type":  {list: "users=dstore", wantErr: true},
		"invalid key":   {list: "users=store(abc)", wantErr: true},
		"duplicate":     {list: "a=store,a=lockmgr", wantErr: true},
		"empty":         {list: "", wantErr: true},
		"lockmgr w key": {list: "a=lockmgr(" + hexKey + ")", wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := ParseShards(tc.list)
			if tc.wantErr {
				if err == nil {
					t.Errorf("expected error for %q, got %+v", tc.list, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %d shards, want %d", len(got), len(tc.want))
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("shard %d = %+v, want %+v", i, got[i], tc.want[i])
				}
			}
		})
	}
}
