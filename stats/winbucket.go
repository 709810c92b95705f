package stats

import "sort"

// WinBuckets
//
// 用來把贏倍定位到 DistReport 的位置
//
// 請勿修改預設值
//   - win區間: 贏倍區間 [0,0], (0,1), [1,2), [2,5), ..., [2000,10000), [10000, +inf)
type WinBuckets struct {
	winBucket    []float64
	winBucketStr []string
}

// Buckets 預設贏倍分桶
var Buckets *WinBuckets = &WinBuckets{
	winBucket:    []float64{0, 1, 2, 5, 10, 20, 50, 100, 300, 500, 1000, 2000, 10000},
	winBucketStr: []string{"[0,0]", "(0,1)", "[1,2)", "[2,5)", "[5,10)", "[10,20)", "[20,50)", "[50,100)", "[100,300)", "[300,500)", "[500,1000)", "[1000,2000)", "[2000,10000)", "[10000,+inf)"},
}

func (b *WinBuckets) WinBucketStr() []string {
	return b.winBucketStr
}

// Index 回傳贏倍所在的分桶；負值視為 0
func (b *WinBuckets) Index(mult float64) int {
	if mult <= 0 {
		return 0
	}
	// 第一個 > mult 的邊界，左閉右開
	return sort.Search(len(b.winBucket), func(i int) bool { return b.winBucket[i] > mult })
}
