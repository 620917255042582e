package ingest

import "bizarea/internal/repo"

func strPtr(s string) *string {
	return &s
}

// SampleData returns the built-in seed dataset.
func SampleData() Dataset {
	return Dataset{
		Cities: []repo.City{
			{ID: "110000", Name: "北京市", Code: "110000", Level: repo.LevelProvince, Longitude: 116.4074, Latitude: 39.9042, Pinyin: "beijingshi", PinyinAbbr: "BJS"},
			{ID: "110100", Name: "北京", Code: "110100", Level: repo.LevelCity, ParentID: strPtr("110000"), Longitude: 116.4074, Latitude: 39.9042, Population: 21890000, Area: 16410, EconomicLevel: "tier1", IsHot: true, Pinyin: "beijing", PinyinAbbr: "BJ"},
			{ID: "310100", Name: "上海", Code: "310100", Level: repo.LevelCity, Longitude: 121.4737, Latitude: 31.2304, Population: 24870000, Area: 6340, EconomicLevel: "tier1", IsHot: true, Pinyin: "shanghai", PinyinAbbr: "SH"},
			{ID: "440100", Name: "广州", Code: "440100", Level: repo.LevelCity, Longitude: 113.2644, Latitude: 23.1291, Population: 18680000, Area: 7434, EconomicLevel: "tier1", IsHot: true, Pinyin: "guangzhou", PinyinAbbr: "GZ"},
			{ID: "440300", Name: "深圳", Code: "440300", Level: repo.LevelCity, Longitude: 114.0579, Latitude: 22.5431, Population: 17560000, Area: 1997, EconomicLevel: "tier1", IsHot: true, Pinyin: "shenzhen", PinyinAbbr: "SZ"},
			{ID: "330100", Name: "杭州", Code: "330100", Level: repo.LevelCity, Longitude: 120.1551, Latitude: 30.2741, Population: 11940000, Area: 16850, EconomicLevel: "new_tier1", IsHot: true, Pinyin: "hangzhou", PinyinAbbr: "HZ"},
			{ID: "510100", Name: "成都", Code: "510100", Level: repo.LevelCity, Longitude: 104.0665, Latitude: 30.5723, Population: 20940000, Area: 14335, EconomicLevel: "new_tier1", IsHot: true, Pinyin: "chengdu", PinyinAbbr: "CD"},
			{ID: "110105", Name: "朝阳区", Code: "110105", Level: repo.LevelDistrict, ParentID: strPtr("110100"), Longitude: 116.4436, Latitude: 39.9215, Pinyin: "chaoyangqu", PinyinAbbr: "CYQ"},
		},
		BusinessAreas: []SeedArea{
			{
				BusinessArea: repo.BusinessArea{
					Name: "王府井", CityID: "110100", Type: repo.AreaTypeShopping, Level: "A",
					Longitude: 116.4109, Latitude: 39.9149, HotValue: 95, AvgConsumption: 260, CustomerFlow: 300000, Rating: 4.6,
					Address: "北京市东城区王府井大街", Tags: []string{"老字号", "步行街"},
				},
				Stores: []repo.Store{
					{Name: "全聚德(王府井店)", Category: "restaurant", SubCategory: "烤鸭", Longitude: 116.4105, Latitude: 39.9140, Rating: 4.5, ReviewCount: 9200, AvgPrice: 220, IsRecommended: true, Tags: []string{"老字号"}},
					{Name: "王府井百货", Category: "retail", SubCategory: "百货", Longitude: 116.4112, Latitude: 39.9152, Rating: 4.3, ReviewCount: 5100, AvgPrice: 500},
				},
			},
			{
				BusinessArea: repo.BusinessArea{
					Name: "三里屯", CityID: "110100", Type: repo.AreaTypeEntertainment, Level: "A",
					Longitude: 116.4551, Latitude: 39.9373, HotValue: 92, AvgConsumption: 320, CustomerFlow: 220000, Rating: 4.8,
					Address: "北京市朝阳区三里屯路", Tags: []string{"夜生活", "潮流"},
				},
				Stores: []repo.Store{
					{Name: "太古里南区", Category: "retail", SubCategory: "购物中心", Longitude: 116.4547, Latitude: 39.9346, Rating: 4.7, ReviewCount: 12000, AvgPrice: 400, IsRecommended: true},
				},
			},
			{
				BusinessArea: repo.BusinessArea{
					Name: "南京路步行街", CityID: "310100", Type: repo.AreaTypeShopping, Level: "A",
					Longitude: 121.4752, Latitude: 31.2352, HotValue: 98, AvgConsumption: 280, CustomerFlow: 400000, Rating: 4.7,
					Address: "上海市黄浦区南京东路", Tags: []string{"步行街"},
				},
				Stores: []repo.Store{
					{Name: "第一百货", Category: "retail", SubCategory: "百货", Longitude: 121.4741, Latitude: 31.2355, Rating: 4.4, ReviewCount: 6600, AvgPrice: 350},
					{Name: "沈大成", Category: "restaurant", SubCategory: "本帮菜", Longitude: 121.4786, Latitude: 31.2359, Rating: 4.5, ReviewCount: 3900, AvgPrice: 45, IsRecommended: true},
				},
			},
			{
				BusinessArea: repo.BusinessArea{
					Name: "天河路", CityID: "440100", Type: repo.AreaTypeMixed, Level: "A",
					Longitude: 113.3245, Latitude: 23.1365, HotValue: 90, AvgConsumption: 240, CustomerFlow: 350000, Rating: 4.6,
					Address: "广州市天河区天河路",
				},
			},
			{
				BusinessArea: repo.BusinessArea{
					Name: "华强北", CityID: "440300", Type: repo.AreaTypeShopping, Level: "A",
					Longitude: 114.0855, Latitude: 22.5470, HotValue: 88, AvgConsumption: 180, CustomerFlow: 280000, Rating: 4.4,
					Address: "深圳市福田区华强北路", Tags: []string{"电子"},
				},
			},
			{
				BusinessArea: repo.BusinessArea{
					Name: "湖滨银泰", CityID: "330100", Type: repo.AreaTypeShopping, Level: "A",
					Longitude: 120.1636, Latitude: 30.2584, HotValue: 89, AvgConsumption: 230, CustomerFlow: 210000, Rating: 4.6,
					Address: "杭州市上城区延安路",
				},
			},
			{
				BusinessArea: repo.BusinessArea{
					Name: "春熙路", CityID: "510100", Type: repo.AreaTypeDining, Level: "A",
					Longitude: 104.0807, Latitude: 30.6570, HotValue: 93, AvgConsumption: 150, CustomerFlow: 330000, Rating: 4.7,
					Address: "成都市锦江区春熙路", Tags: []string{"美食", "步行街"},
				},
				Stores: []repo.Store{
					{Name: "蜀九香火锅", Category: "restaurant", SubCategory: "火锅", Longitude: 104.0812, Latitude: 30.6562, Rating: 4.6, ReviewCount: 8700, AvgPrice: 120, IsRecommended: true},
				},
			},
		},
	}
}
